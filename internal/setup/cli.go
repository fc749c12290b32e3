package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	reader *bufio.Reader
	out    io.Writer

	// configPath overrides the Claude Desktop config location
	configPath string
}

// NewCLI creates a new setup CLI instance.
func NewCLI(in io.Reader, out io.Writer) *CLI {
	return &CLI{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "claude-desktop":
		return c.setupClaudeDesktop(args[1:])
	case "status":
		return c.showStatus()
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	fmt.Fprint(c.out, `
Clinical Note Classifier MCP Server Setup

Usage:
  mcp-server setup <command> [options]

Commands:
  claude-desktop  Register this server with Claude Desktop
  status          Show current registration status

Options for claude-desktop:
  --binary, -b <path>   Server binary (default: this executable)
  --config, -c <path>   Config file passed as CNC_CONFIG_FILE
  --auto, -y            Skip confirmation
`)
	return nil
}

func (c *CLI) desktopConfigPath() (string, error) {
	if c.configPath != "" {
		return c.configPath, nil
	}
	return GetClaudeDesktopConfigPath()
}

// setupClaudeDesktop configures Claude Desktop integration.
func (c *CLI) setupClaudeDesktop(args []string) error {
	var opts SetupOptions

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--binary", "-b":
			if i+1 < len(args) {
				opts.BinaryPath = args[i+1]
				i++
			}
		case "--config", "-c":
			if i+1 < len(args) {
				opts.ConfigFile = args[i+1]
				i++
			}
		case "--auto", "-y":
			opts.AutoConfirm = true
		}
	}

	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	configPath, err := c.desktopConfigPath()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Claude Desktop Configuration")
	fmt.Fprintln(c.out, "============================")
	fmt.Fprintf(c.out, "Config file: %s\n", configPath)
	fmt.Fprintf(c.out, "Server binary: %s\n", opts.BinaryPath)
	if opts.ConfigFile != "" {
		fmt.Fprintf(c.out, "Server config: %s\n", opts.ConfigFile)
	}
	fmt.Fprintln(c.out)

	if !opts.AutoConfirm {
		fmt.Fprint(c.out, "Proceed with configuration? [Y/n]: ")
		response, _ := c.reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Fprintln(c.out, "Configuration cancelled.")
			return nil
		}
	}

	if err := ConfigureClaudeDesktop(configPath, opts); err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}

	fmt.Fprintln(c.out, "Claude Desktop configured. Restart Claude Desktop to load the classify_note and fetch_discharge_summary tools.")
	return nil
}

// showStatus displays the current setup status.
func (c *CLI) showStatus() error {
	configPath, err := c.desktopConfigPath()
	if err != nil {
		return err
	}
	status, err := GetStatus(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Claude Desktop config: %s\n", status.ClaudeDesktopPath)
	if status.Configured {
		fmt.Fprintf(c.out, "Registered as %q: %s\n", ServerName, status.ServerPath)
		if status.ConfigFile != "" {
			fmt.Fprintf(c.out, "Server config: %s\n", status.ConfigFile)
		}
	} else {
		fmt.Fprintln(c.out, "Not registered")
	}

	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
	return nil
}

package setup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClaudeDesktopConfig_Missing(t *testing.T) {
	config, err := LoadClaudeDesktopConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, config.MCPServers)
}

func TestLoadClaudeDesktopConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadClaudeDesktopConfig(path)
	assert.Error(t, err)
}

func TestConfigureClaudeDesktop_PreservesOtherEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Claude", "claude_desktop_config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	existing := `{"theme":"dark","mcpServers":{"other":{"command":"/bin/other"}}}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	binary := filepath.Join(dir, "mcp-server")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))
	serverConfig := filepath.Join(dir, "config.yaml")

	err := ConfigureClaudeDesktop(path, SetupOptions{BinaryPath: binary, ConfigFile: serverConfig})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"dark"`, string(raw["theme"]))

	config, err := LoadClaudeDesktopConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/bin/other", config.MCPServers["other"].Command)
	entry := config.MCPServers[ServerName]
	assert.Equal(t, binary, entry.Command)
	assert.Equal(t, serverConfig, entry.Env["CNC_CONFIG_FILE"])
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claude_desktop_config.json")

	status, err := GetStatus(path)
	require.NoError(t, err)
	assert.False(t, status.Configured)
	assert.Len(t, status.Issues, 1)

	require.NoError(t, ConfigureClaudeDesktop(path, SetupOptions{BinaryPath: filepath.Join(dir, "missing-binary")}))

	status, err = GetStatus(path)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "Server binary not found")
}

func TestCLI_ClaudeDesktop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claude_desktop_config.json")
	var out bytes.Buffer

	cli := NewCLI(strings.NewReader("n\n"), &out)
	cli.configPath = path
	require.NoError(t, cli.Run([]string{"claude-desktop", "--binary", "/opt/cnc/mcp-server"}))
	assert.Contains(t, out.String(), "Configuration cancelled.")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	out.Reset()
	cli = NewCLI(strings.NewReader(""), &out)
	cli.configPath = path
	require.NoError(t, cli.Run([]string{"claude-desktop", "-b", "/opt/cnc/mcp-server", "-y"}))

	out.Reset()
	require.NoError(t, cli.Run([]string{"status"}))
	assert.Contains(t, out.String(), `Registered as "clinical-note-classifier": /opt/cnc/mcp-server`)
}

func TestCLI_Help(t *testing.T) {
	var out bytes.Buffer
	cli := NewCLI(strings.NewReader(""), &out)

	require.NoError(t, cli.Run([]string{"bogus"}))
	assert.Contains(t, out.String(), "Unknown command: bogus")
	assert.Contains(t, out.String(), "claude-desktop")
}

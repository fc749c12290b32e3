// Package mcp exposes note classification and discharge summary retrieval as
// Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/domain"
)

// Server represents the MCP server
type Server struct {
	config    domain.ConfigManager
	mcpServer *mcp.Server
	predictor domain.NotePredictor
	discharge domain.DischargeFetcher
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with both tools registered
func NewServer(configManager domain.ConfigManager, predictor domain.NotePredictor, discharge domain.DischargeFetcher, logger *logrus.Logger) (*Server, error) {
	if predictor == nil || discharge == nil {
		return nil, fmt.Errorf("predictor and discharge fetcher are required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	cfg := configManager.GetConfig()
	serverInfo := &mcp.Implementation{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
	}
	if serverInfo.Name == "" {
		serverInfo.Name = "clinical-note-classifier"
	}
	if serverInfo.Version == "" {
		serverInfo.Version = "1.0.0"
	}

	server := &Server{
		config:    configManager,
		mcpServer: mcp.NewServer(serverInfo, nil),
		predictor: predictor,
		discharge: discharge,
		logger:    logger,
	}

	server.registerTools()
	return server, nil
}

// Start runs the server on stdin/stdout until ctx is cancelled or the client
// disconnects
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// registerTools registers the classification and retrieval tools
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        classifyNoteTool,
		Description: "Classify a free-text clinical note. Returns YES or NO with the raw decision score.",
	}, s.handleClassifyNote)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        fetchDischargeTool,
		Description: "Fetch the most recent discharge summary (LOINC 18842-5) for a FHIR patient id. discharge_summary is null when none is on record.",
	}, s.handleFetchDischargeSummary)

	s.logger.WithField("tool_count", 2).Debug("Registered MCP tools")
}

// Package mcp serves a tool registry over the Model Context Protocol, on
// stdio or streamable HTTP, through the mcp-go SDK.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"larkmcp/internal/domain"
	"larkmcp/internal/tool"
)

// Server adapts a tool.Registry to an SDK server. The registry stays the
// source of tools and prompts; the SDK owns framing and protocol methods.
type Server struct {
	registry *tool.Registry
	mcp      *mcpserver.MCPServer
	logger   *slog.Logger
}

type ServerConfig struct {
	Registry *tool.Registry
	Version  string
	Logger   *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{registry: cfg.Registry, logger: logger}
	s.mcp = mcpserver.NewMCPServer(cfg.Registry.Name(), version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)
	for _, def := range cfg.Registry.GetDefinitions() {
		s.addTool(def)
	}
	for _, p := range cfg.Registry.Prompts() {
		s.addPrompt(p)
	}
	return s
}

func (s *Server) addTool(def domain.ToolDefinition) {
	schema, err := json.Marshal(def.Parameters)
	if err != nil {
		s.logger.Warn("tool schema not encodable, skipping", "tool", def.Name, "error", err)
		return
	}
	name := def.Name
	s.mcp.AddTool(mcpgo.NewToolWithRawSchema(name, def.Description, schema),
		func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			out, err := s.registry.Execute(ctx, name, req.GetArguments())
			if err != nil {
				// Tool failures are results the model can read, not protocol errors.
				return mcpgo.NewToolResultError(err.Error()), nil
			}
			return mcpgo.NewToolResultText(out), nil
		})
}

func (s *Server) addPrompt(p domain.Prompt) {
	prompt := p
	s.mcp.AddPrompt(mcpgo.NewPrompt(prompt.Name, mcpgo.WithPromptDescription(prompt.Description)),
		func(context.Context, mcpgo.GetPromptRequest) (*mcpgo.GetPromptResult, error) {
			return mcpgo.NewGetPromptResult(prompt.Description, []mcpgo.PromptMessage{
				mcpgo.NewPromptMessage(mcpgo.RoleUser, mcpgo.NewTextContent(prompt.Text)),
			}), nil
		})
}

// HandleMessage processes one JSON-RPC message. Notifications return nil.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) mcpgo.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, raw)
}

// Serve reads newline-delimited JSON-RPC from r and writes responses to w
// until EOF or ctx is cancelled. Both end cleanly.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server started", "server", s.registry.Name(), "transport", "stdio")

	err := stdio.Listen(ctx, r, w)
	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

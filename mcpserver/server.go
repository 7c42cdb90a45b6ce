// Package mcpserver exposes the registered tool endpoints over the Model
// Context Protocol, on either a stdio or an HTTP/SSE transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"opschat/service"
	"opschat/shared"
)

// Server wraps an MCP server whose tools are backed by dispatcher
// endpoints. The adapter adds nothing on top of the endpoint handlers
// beyond transport framing.
type Server struct {
	name string
	mcp  *server.MCPServer
}

func New(name, version string, endpoints []service.ToolEndPoint) (*Server, error) {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	for _, endpoint := range endpoints {
		tool, err := shared.ConvertToMcpTool(endpoint.Def)
		if err != nil {
			return nil, fmt.Errorf("convert tool %s: %w", endpoint.Name, err)
		}
		s.AddTool(tool, toolHandler(endpoint))
	}
	return &Server{name: name, mcp: s}, nil
}

func toolHandler(endpoint service.ToolEndPoint) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := endpoint.Handler(ctx, string(args))
		if err != nil {
			// Tool failures ride back as tool results, not protocol
			// errors, so the calling agent can surface them as text.
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(res), nil
	}
}

// ServeStdio blocks serving the stdio transport until stdin closes.
func (s *Server) ServeStdio() error {
	log.Info().Str("server", s.name).Msg("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

// ServeHTTP blocks serving the SSE transport on host:port under /mcp.
func (s *Server) ServeHTTP(host string, port int) error {
	sseServer := server.NewSSEServer(s.mcp)
	mux := http.NewServeMux()
	mux.Handle("/mcp", sseServer)
	mux.Handle("/mcp/", sseServer)

	addr := fmt.Sprintf("%s:%d", host, port)
	log.Info().Str("server", s.name).Str("addr", addr).Msg("serving MCP over HTTP/SSE")
	return http.ListenAndServe(addr, mux)
}

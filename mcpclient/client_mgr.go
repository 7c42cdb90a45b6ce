// Package mcpclient connects to remote MCP servers and re-exposes their
// tools as dispatcher endpoints, so agents can run against a remote
// protocol adapter instead of the in-process one.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"opschat/service"
	"opschat/shared"
)

// ClientMgr tracks connected MCP clients keyed by the server name they
// announce during initialization.
type ClientMgr struct {
	clientMap map[string]*client.Client
}

func NewClientMgr() *ClientMgr {
	return &ClientMgr{
		clientMap: map[string]*client.Client{},
	}
}

func (mgr *ClientMgr) CloseByName(name string) error {
	c, exist := mgr.clientMap[name]
	if !exist {
		return fmt.Errorf("client %s not exist", name)
	}
	if err := c.Close(); err != nil {
		return err
	}
	delete(mgr.clientMap, name)
	return nil
}

func (mgr *ClientMgr) Close() error {
	var errList []error
	for _, c := range mgr.clientMap {
		if err := c.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// ConnectStdio spawns command and speaks MCP over its stdio.
func (mgr *ClientMgr) ConnectStdio(ctx context.Context, command string, env []string, args ...string) error {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return &shared.UpstreamError{Service: "mcp", Err: err}
	}
	return mgr.initialize(ctx, c)
}

// ConnectSSE attaches to a remote MCP server over HTTP/SSE.
func (mgr *ClientMgr) ConnectSSE(ctx context.Context, baseURL string) error {
	c, err := client.NewSSEMCPClient(baseURL)
	if err != nil {
		return &shared.UpstreamError{Service: "mcp", Err: err}
	}
	if err := c.Start(ctx); err != nil {
		return &shared.UpstreamError{Service: "mcp", Err: err}
	}
	return mgr.initialize(ctx, c)
}

func (mgr *ClientMgr) initialize(ctx context.Context, c *client.Client) error {
	res, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "opschat",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		c.Close()
		return &shared.UpstreamError{Service: "mcp", Err: err}
	}
	if _, exist := mgr.clientMap[res.ServerInfo.Name]; exist {
		c.Close()
		return fmt.Errorf("mcp server %s already exist", res.ServerInfo.Name)
	}
	mgr.clientMap[res.ServerInfo.Name] = c
	return nil
}

// LoadAllTools lists every connected server's tools and wraps each one as
// a dispatcher endpoint whose handler forwards the call over MCP.
func (mgr *ClientMgr) LoadAllTools(ctx context.Context) ([]service.ToolEndPoint, error) {
	var endpoints []service.ToolEndPoint
	var errorList []error
	for _, c := range mgr.clientMap {
		res, err := mgr.loadTools(ctx, c)
		if err != nil {
			errorList = append(errorList, err)
			continue
		}
		endpoints = append(endpoints, res...)
	}
	if err := errors.Join(errorList...); err != nil {
		return nil, err
	}
	return endpoints, nil
}

func (mgr *ClientMgr) loadTools(ctx context.Context, c *client.Client) ([]service.ToolEndPoint, error) {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, &shared.UpstreamError{Service: "mcp", Err: err}
	}
	endpointList := make([]service.ToolEndPoint, 0, len(res.Tools))
	for _, tool := range res.Tools {
		endpointList = append(endpointList, service.ToolEndPoint{
			Name:    tool.Name,
			Def:     shared.ConvertToFunctionDefinition(tool),
			Handler: callToolHandler(c, tool.Name),
		})
	}
	return endpointList, nil
}

func callToolHandler(c *client.Client, toolName string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var argMap map[string]any
		if args != "" {
			if err := json.Unmarshal([]byte(args), &argMap); err != nil {
				return "", &shared.InvalidArgumentsError{Tool: toolName, Reason: "arguments are not a JSON object"}
			}
		}
		res, err := c.CallTool(ctx, mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      toolName,
				Arguments: argMap,
			},
		})
		if err != nil {
			return "", &shared.UpstreamError{Service: "mcp", Err: err}
		}

		var builder strings.Builder
		for _, content := range res.Content {
			if text, ok := content.(mcp.TextContent); ok {
				builder.WriteString(text.Text)
				builder.WriteByte('\n')
			}
		}
		if res.IsError {
			return "", &shared.UpstreamError{Service: "mcp", Message: strings.TrimSpace(builder.String())}
		}
		return builder.String(), nil
	}
}

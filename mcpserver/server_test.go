package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opschat/service"
	"opschat/shared"
)

func issuesEndpoint(handler func(ctx context.Context, args string) (string, error)) service.ToolEndPoint {
	return service.ToolEndPoint{
		Name: "list_gitlab_issues",
		Def: openai.FunctionDefinition{
			Name:        "list_gitlab_issues",
			Description: "List GitLab issues.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"month": {Type: jsonschema.String},
				},
			},
		},
		Handler: handler,
	}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestToolHandlerForwardsArguments(t *testing.T) {
	var gotArgs string
	h := toolHandler(issuesEndpoint(func(_ context.Context, args string) (string, error) {
		gotArgs = args
		return "## Issues Summary\nTotal issues: 3", nil
	}))

	res, err := h(context.Background(), callRequest("list_gitlab_issues", map[string]any{"month": "January"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(gotArgs), &decoded))
	assert.Equal(t, "January", decoded["month"])

	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Total issues: 3")
}

func TestToolHandlerErrorBecomesToolResult(t *testing.T) {
	h := toolHandler(issuesEndpoint(func(_ context.Context, _ string) (string, error) {
		return "", &shared.UpstreamError{Service: "gitlab", StatusCode: 503, Message: "unavailable"}
	}))

	res, err := h(context.Background(), callRequest("list_gitlab_issues", nil))
	// Tool failures come back as error results, not protocol errors.
	require.NoError(t, err)
	require.True(t, res.IsError)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "503")
}

func TestNewRegistersAllEndpoints(t *testing.T) {
	srv, err := New("opschat-mcp", "1.0.0", []service.ToolEndPoint{
		issuesEndpoint(func(_ context.Context, _ string) (string, error) { return "", nil }),
	})
	require.NoError(t, err)
	assert.NotNil(t, srv.mcp)
}

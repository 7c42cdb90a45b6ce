package shared

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
)

// ConvertToMcpTool turns an OpenAI function definition into an MCP tool by
// passing the parameter schema through as raw JSON Schema.
func ConvertToMcpTool(def openai.FunctionDefinition) (mcp.Tool, error) {
	data, err := json.Marshal(def.Parameters)
	if err != nil {
		return mcp.Tool{}, err
	}

	tool := mcp.NewToolWithRawSchema(def.Name, def.Description, data)
	return tool, nil
}

// ConvertToFunctionDefinition is the reverse direction: an MCP tool listed
// from a remote server becomes an OpenAI function definition, with the
// input schema carried as raw JSON.
func ConvertToFunctionDefinition(tool mcp.Tool) openai.FunctionDefinition {
	def := openai.FunctionDefinition{
		Name:        tool.Name,
		Description: tool.Description,
	}
	data, err := json.Marshal(tool.InputSchema)
	if err != nil || len(data) == 0 {
		def.Parameters = json.RawMessage(`{"type":"object","properties":{}}`)
		return def
	}
	def.Parameters = json.RawMessage(data)
	return def
}

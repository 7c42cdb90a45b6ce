// Package service is the protocol adapter: every API operation is exposed
// as a named tool with a declared input schema, and a dispatcher routes
// validated tool calls to the matching handler.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"opschat/shared"
)

// ToolEndPoint binds a tool name and its input schema to a handler. The
// handler receives the raw JSON argument object after it has passed schema
// validation.
type ToolEndPoint struct {
	Name    string
	Def     openai.FunctionDefinition
	Handler func(ctx context.Context, args string) (string, error)
}

// Dispatcher routes tool calls to registered endpoints. Registration
// happens at startup; after that the dispatcher is read-only and safe for
// concurrent dispatch without locks.
type Dispatcher struct {
	toolMap map[string]ToolEndPoint
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		toolMap: map[string]ToolEndPoint{},
	}
}

func (d *Dispatcher) Register(endpoints ...ToolEndPoint) error {
	var errs []error
	for _, endpoint := range endpoints {
		if _, exist := d.toolMap[endpoint.Name]; exist {
			errs = append(errs, fmt.Errorf("tool with name %s already exists", endpoint.Name))
			continue
		}
		d.toolMap[endpoint.Name] = endpoint
	}
	return errors.Join(errs...)
}

// Dispatch validates args against the tool's declared schema and invokes
// the handler. An unregistered name fails with UnknownToolError before any
// client call; schema violations fail with InvalidArgumentsError the same
// way.
func (d *Dispatcher) Dispatch(ctx context.Context, name, args string) (string, error) {
	endpoint, exist := d.toolMap[name]
	if !exist {
		return "", &shared.UnknownToolError{Name: name}
	}
	if err := validateArgs(name, endpoint.Def.Parameters, args); err != nil {
		return "", err
	}
	return endpoint.Handler(ctx, args)
}

// Has reports whether a tool name is registered.
func (d *Dispatcher) Has(name string) bool {
	_, exist := d.toolMap[name]
	return exist
}

// Tools returns the registered set as OpenAI tool declarations for the
// function-calling request.
func (d *Dispatcher) Tools() []openai.Tool {
	res := make([]openai.Tool, 0, len(d.toolMap))
	for name := range d.toolMap {
		endpoint := d.toolMap[name]
		res = append(res, openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &endpoint.Def,
		})
	}
	return res
}

// Endpoints returns the registered endpoints, e.g. for exporting the same
// tool set over MCP.
func (d *Dispatcher) Endpoints() []ToolEndPoint {
	res := make([]ToolEndPoint, 0, len(d.toolMap))
	for _, endpoint := range d.toolMap {
		res = append(res, endpoint)
	}
	return res
}

package service

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai/jsonschema"

	"opschat/shared"
)

// validateArgs checks a raw JSON argument object against the tool's
// declared schema before the handler ever runs: required properties must
// be present, provided properties must match their declared primitive type
// and enum. Tools loaded from remote MCP servers carry raw schemas we do
// not interpret; those pass through and the server validates.
func validateArgs(tool string, params any, args string) error {
	def, ok := params.(jsonschema.Definition)
	if !ok {
		return nil
	}

	if args == "" {
		args = "{}"
	}
	var provided map[string]json.RawMessage
	if err := json.Unmarshal([]byte(args), &provided); err != nil {
		return &shared.InvalidArgumentsError{Tool: tool, Reason: "arguments are not a JSON object"}
	}

	for _, name := range def.Required {
		if _, found := provided[name]; !found {
			return &shared.InvalidArgumentsError{Tool: tool, Reason: fmt.Sprintf("missing required argument %q", name)}
		}
	}

	for name, raw := range provided {
		prop, declared := def.Properties[name]
		if !declared {
			return &shared.InvalidArgumentsError{Tool: tool, Reason: fmt.Sprintf("unknown argument %q", name)}
		}
		if string(raw) == "null" {
			continue
		}
		if err := checkType(name, prop, raw); err != nil {
			return &shared.InvalidArgumentsError{Tool: tool, Reason: err.Error()}
		}
	}
	return nil
}

func checkType(name string, prop jsonschema.Definition, raw json.RawMessage) error {
	switch prop.Type {
	case jsonschema.String:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("argument %q must be a string", name)
		}
		if len(prop.Enum) > 0 && !contains(prop.Enum, s) {
			return fmt.Errorf("argument %q must be one of %v", name, prop.Enum)
		}
	case jsonschema.Integer:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("argument %q must be an integer", name)
		}
		if n != math.Trunc(n) {
			return fmt.Errorf("argument %q must be an integer", name)
		}
	case jsonschema.Number:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("argument %q must be a number", name)
		}
	case jsonschema.Boolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("argument %q must be a boolean", name)
		}
	case jsonschema.Array:
		var a []json.RawMessage
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("argument %q must be an array", name)
		}
	case jsonschema.Object:
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("argument %q must be an object", name)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

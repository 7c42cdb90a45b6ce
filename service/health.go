package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// CombinedHealthTool reports both services in one pass. Unlike the
// per-service checks a failing side never aborts the tool: each side
// reports its own state and the overall status degrades accordingly.
// sp may be nil when SharePoint is not configured.
func CombinedHealthTool(gl *GitLabTools, sp *SharePointTools) ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "health_check",
		Description: "Check the GitLab and SharePoint connections in one report.",
		Parameters: jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: map[string]jsonschema.Definition{},
		},
	}
	handler := func(ctx context.Context, _ string) (string, error) {
		var b strings.Builder
		b.WriteString("## Health Check\n\n")

		glOK := gl.Client.Ping(ctx) == nil
		if glOK {
			fmt.Fprintf(&b, "GitLab: ok (%d projects configured)\n", len(gl.Projects))
		} else {
			b.WriteString("GitLab: unreachable\n")
		}

		spOK := true
		switch {
		case sp == nil:
			b.WriteString("SharePoint: not configured\n")
		case sp.Client.Ping(ctx) == nil:
			fmt.Fprintf(&b, "SharePoint: ok (%d default lists)\n", len(sp.DefaultLists))
		default:
			spOK = false
			b.WriteString("SharePoint: unreachable\n")
		}

		switch {
		case glOK && spOK:
			b.WriteString("\nOverall status: healthy\n")
		case !glOK && sp != nil && !spOK:
			b.WriteString("\nOverall status: unhealthy\n")
		default:
			b.WriteString("\nOverall status: degraded\n")
		}
		return b.String(), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

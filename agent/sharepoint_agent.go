package agent

import (
	"strings"

	"opschat/service"
	"opschat/shared"
)

const sharepointPrompt = `You are an assistant that helps users with SharePoint forms and lists.

When users ask about forms, call list_sharepoint_forms. Pass a month when the user names one.
When users ask for a specific form by id, call get_sharepoint_form with form_id.
When users ask which lists exist, call get_sharepoint_lists.

Examples:
- "show forms from January" -> list_sharepoint_forms with month="January"
- "approved forms this month" -> list_sharepoint_forms with month="this month", status="Approved"
- "open form 42" -> get_sharepoint_form with form_id=42
- "what lists are there" -> get_sharepoint_lists

Summaries must mention at least each form's title and created date. Keep answers short.`

// NewSharePointAgent wires the SharePoint tool set into an agent.
func NewSharePointAgent(client Completer, model string, dispatch *service.Dispatcher, summarize bool) *Agent {
	return New("sharepoint", sharepointPrompt, model, client, dispatch, sharepointPlanner, summarize)
}

var statusWords = []struct {
	keyword string
	status  string
}{
	{"approved", "Approved"},
	{"rejected", "Rejected"},
	{"pending", "Pending"},
	{"draft", "Draft"},
	{"submitted", "Submitted"},
}

func sharepointPlanner(query string) []shared.ToolCall {
	q := strings.ToLower(query)

	if id := extractFormID(q); id != "" {
		return []shared.ToolCall{{
			Name:      "get_sharepoint_form",
			Arguments: marshalArgs(map[string]any{"form_id": id}),
		}}
	}

	if strings.Contains(q, "list") && !strings.Contains(q, "form") {
		return []shared.ToolCall{{Name: "get_sharepoint_lists", Arguments: "{}"}}
	}

	if strings.Contains(q, "health") || strings.Contains(q, "connection") {
		return []shared.ToolCall{{Name: "sharepoint_health_check", Arguments: "{}"}}
	}

	args := map[string]any{"limit": 50}
	if month := extractMonth(q); month != "" {
		args["month"] = month
	}
	for _, sw := range statusWords {
		if strings.Contains(q, sw.keyword) {
			args["status"] = sw.status
			break
		}
	}
	if strings.Contains(q, "document") {
		args["list_name"] = "Documents"
	}
	return []shared.ToolCall{{Name: "list_sharepoint_forms", Arguments: marshalArgs(args)}}
}

// extractFormID looks for "form <number>" in the query.
func extractFormID(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		if (f == "form" || f == "entry" || f == "item") && i+1 < len(fields) {
			next := strings.Trim(fields[i+1], ".,?!#")
			if next != "" && isDigits(next) {
				return next
			}
		}
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package agent

import (
	"encoding/json"
	"strings"

	"opschat/service"
	"opschat/shared"
)

const gitlabPrompt = `You are an assistant that helps users with GitLab issues and merge requests.

When users ask about issues without naming a month or time period, ask which month they mean before calling any tool.
When users name a month or time period, call list_gitlab_issues with the matching parameters.
When users ask about merge requests, call list_merge_requests.

Examples:
- "show me issues" -> ask for a month
- "January bugs" -> list_gitlab_issues with month="January", labels="bug"
- "this month high priority" -> list_gitlab_issues with month="this month", labels="high-priority"
- "last month closed issues" -> list_gitlab_issues with month="last month", state="closed"

Summaries must mention at least each issue's title and state. Keep answers short.`

// NewGitLabAgent wires the GitLab tool set into an agent. client may be
// nil, leaving only the rule-based planner.
func NewGitLabAgent(client Completer, model string, dispatch *service.Dispatcher, summarize bool) *Agent {
	return New("gitlab", gitlabPrompt, model, client, dispatch, gitlabPlanner, summarize)
}

var monthWords = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var labelWords = []struct {
	keyword string
	labels  string
}{
	{"high priority", "high-priority"},
	{"critical", "critical"},
	{"documentation", "documentation"},
	{"enhancement", "enhancement"},
	{"feature", "feature,enhancement"},
	{"bug", "bug"},
}

// gitlabPlanner is the deterministic tool selection used without an LLM:
// keyword matching over the query picks one tool call.
func gitlabPlanner(query string) []shared.ToolCall {
	q := strings.ToLower(query)

	if strings.Contains(q, "merge request") || containsWord(q, "mr") || containsWord(q, "mrs") {
		args := map[string]any{"state": "opened", "limit": 50}
		if strings.Contains(q, "merged") {
			args["state"] = "merged"
		} else if strings.Contains(q, "closed") {
			args["state"] = "closed"
		}
		return []shared.ToolCall{{Name: "list_merge_requests", Arguments: marshalArgs(args)}}
	}

	if strings.Contains(q, "health") || strings.Contains(q, "connection") {
		return []shared.ToolCall{{Name: "gitlab_health_check", Arguments: "{}"}}
	}

	args := map[string]any{"state": "opened", "limit": 100}
	if month := extractMonth(q); month != "" {
		args["month"] = month
	}
	if strings.Contains(q, "closed") {
		args["state"] = "closed"
	} else if containsWord(q, "all") {
		args["state"] = "all"
	}
	for _, lw := range labelWords {
		if strings.Contains(q, lw.keyword) {
			args["labels"] = lw.labels
			break
		}
	}
	return []shared.ToolCall{{Name: "list_gitlab_issues", Arguments: marshalArgs(args)}}
}

func extractMonth(q string) string {
	switch {
	case strings.Contains(q, "this month"), strings.Contains(q, "current month"):
		return "this month"
	case strings.Contains(q, "last month"), strings.Contains(q, "previous month"):
		return "last month"
	}
	for _, m := range monthWords {
		if strings.Contains(q, m) {
			return m
		}
	}
	return ""
}

func containsWord(q, word string) bool {
	for _, f := range strings.FieldsFunc(q, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func marshalArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"opschat/dates"
	"opschat/gitlab"
	"opschat/shared"
)

// GitLabTools builds the tool endpoints backed by the GitLab client. The
// configured project ids bound the search scope.
type GitLabTools struct {
	Client   *gitlab.Client
	Projects []string
	Now      func() time.Time // stubbed in tests
}

func NewGitLabTools(client *gitlab.Client, projects []string) *GitLabTools {
	return &GitLabTools{Client: client, Projects: projects, Now: time.Now}
}

// Endpoints returns every GitLab tool.
func (g *GitLabTools) Endpoints() []ToolEndPoint {
	return []ToolEndPoint{
		g.ListIssuesTool(),
		g.ListMergeRequestsTool(),
		g.HealthCheckTool(),
	}
}

type listIssuesArgs struct {
	Month    string `json:"month"`
	Year     string `json:"year"`
	State    string `json:"state"`
	Labels   string `json:"labels"`
	Assignee string `json:"assignee"`
	Limit    int    `json:"limit"`
}

func (g *GitLabTools) ListIssuesTool() ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "list_gitlab_issues",
		Description: "List GitLab issues from the configured projects with filtering options.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"month": {
					Type:        jsonschema.String,
					Description: "Month filter like 'January', 'Feb 2024', 'this month', 'last month'.",
				},
				"year": {
					Type:        jsonschema.String,
					Description: "Year filter like '2024'. Combined with month when both are given.",
				},
				"state": {
					Type:        jsonschema.String,
					Description: "Issue state.",
					Enum:        []string{"opened", "closed", "all"},
				},
				"labels": {
					Type:        jsonschema.String,
					Description: "Comma-separated labels to filter by.",
				},
				"assignee": {
					Type:        jsonschema.String,
					Description: "Filter by assignee name.",
				},
				"limit": {
					Type:        jsonschema.Integer,
					Description: "Maximum number of issues to return.",
				},
			},
		},
	}
	handler := func(ctx context.Context, rawArgs string) (string, error) {
		args := listIssuesArgs{State: "opened", Limit: 100}
		if err := bind(rawArgs, &args); err != nil {
			return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: err.Error()}
		}

		query := gitlab.IssueQuery{
			State:    args.State,
			Labels:   args.Labels,
			Assignee: args.Assignee,
			Limit:    args.Limit,
		}
		monthExpr := args.Month
		if monthExpr != "" && args.Year != "" {
			monthExpr = monthExpr + " " + args.Year
		}
		if start, end, ok := dates.ParseMonth(monthExpr, g.Now()); ok {
			query.CreatedAfter = start
			query.CreatedBefore = end
		}

		issues, projectNames, err := g.searchIssues(ctx, query)
		if err != nil {
			return "", err
		}
		return renderIssues(issues, projectNames, args), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

// searchIssues fans the query over every configured project, skipping
// projects that fail individually, and merges newest first. Only a total
// failure (every project errored) propagates.
func (g *GitLabTools) searchIssues(ctx context.Context, q gitlab.IssueQuery) ([]shared.Issue, []string, error) {
	var (
		all      []shared.Issue
		names    []string
		firstErr error
	)
	for _, projectID := range g.Projects {
		issues, err := g.Client.ListIssues(ctx, projectID, q)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(issues) > 0 {
			names = append(names, issues[0].ProjectName)
		}
		all = append(all, issues...)
	}
	if len(all) == 0 && firstErr != nil {
		return nil, nil, firstErr
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}
	return all, names, nil
}

type listMergeRequestsArgs struct {
	State string `json:"state"`
	Limit int    `json:"limit"`
}

func (g *GitLabTools) ListMergeRequestsTool() ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "list_merge_requests",
		Description: "List merge requests from the configured GitLab projects.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"state": {
					Type:        jsonschema.String,
					Description: "Merge request state.",
					Enum:        []string{"opened", "closed", "merged", "all"},
				},
				"limit": {
					Type:        jsonschema.Integer,
					Description: "Maximum number of merge requests to return.",
				},
			},
		},
	}
	handler := func(ctx context.Context, rawArgs string) (string, error) {
		args := listMergeRequestsArgs{State: "opened", Limit: 50}
		if err := bind(rawArgs, &args); err != nil {
			return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: err.Error()}
		}

		var (
			all      []shared.MergeRequest
			firstErr error
		)
		for _, projectID := range g.Projects {
			mrs, err := g.Client.ListMergeRequests(ctx, projectID, args.State, args.Limit)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			all = append(all, mrs...)
		}
		if len(all) == 0 && firstErr != nil {
			return "", firstErr
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		})
		if args.Limit > 0 && len(all) > args.Limit {
			all = all[:args.Limit]
		}
		return renderMergeRequests(all, args.State), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

func (g *GitLabTools) HealthCheckTool() ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "gitlab_health_check",
		Description: "Check the GitLab connection and which configured projects are accessible.",
		Parameters: jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: map[string]jsonschema.Definition{},
		},
	}
	handler := func(ctx context.Context, _ string) (string, error) {
		if err := g.Client.Ping(ctx); err != nil {
			return "", err
		}
		var b strings.Builder
		b.WriteString("GitLab connection: ok\n")
		accessible := 0
		for _, projectID := range g.Projects {
			proj, err := g.Client.GetProject(ctx, projectID)
			if err != nil {
				fmt.Fprintf(&b, "- project %s: not accessible\n", projectID)
				continue
			}
			accessible++
			fmt.Fprintf(&b, "- project %s (%s): accessible\n", projectID, proj.Name)
		}
		fmt.Fprintf(&b, "%d/%d projects accessible\n", accessible, len(g.Projects))
		return b.String(), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

func renderIssues(issues []shared.Issue, projectNames []string, args listIssuesArgs) string {
	var b strings.Builder
	b.WriteString("## Issues Summary\n\n")
	fmt.Fprintf(&b, "Filters: month=%s state=%s labels=%s assignee=%s\n",
		orAll(args.Month), args.State, orAll(args.Labels), orAll(args.Assignee))
	fmt.Fprintf(&b, "Total issues: %d\n", len(issues))
	if len(projectNames) > 0 {
		fmt.Fprintf(&b, "Projects searched: %s\n", strings.Join(projectNames, ", "))
	}

	if len(issues) == 0 {
		b.WriteString("\nNo issues found for the specified criteria.\n")
		return b.String()
	}

	projectCount := map[string]int{}
	stateCount := map[string]int{}
	for _, issue := range issues {
		projectCount[issue.ProjectName]++
		stateCount[issue.State]++
	}
	b.WriteString("\nBy project:\n")
	for _, name := range sortedKeys(projectCount) {
		fmt.Fprintf(&b, "- %s: %d\n", name, projectCount[name])
	}
	b.WriteString("By state:\n")
	for _, state := range sortedKeys(stateCount) {
		fmt.Fprintf(&b, "- %s: %d\n", state, stateCount[state])
	}

	b.WriteString("\nIssues:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- #%d %s [%s]", issue.IID, issue.Title, issue.State)
		if issue.Assignee != "" {
			fmt.Fprintf(&b, " - assignee: %s", issue.Assignee)
		}
		if len(issue.Labels) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(issue.Labels, ", "))
		}
		fmt.Fprintf(&b, " created %s\n", issue.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}

func renderMergeRequests(mrs []shared.MergeRequest, state string) string {
	var b strings.Builder
	b.WriteString("## Merge Requests\n\n")
	fmt.Fprintf(&b, "Filters: state=%s\nTotal merge requests: %d\n", state, len(mrs))
	if len(mrs) == 0 {
		b.WriteString("\nNo merge requests found for the specified criteria.\n")
		return b.String()
	}
	b.WriteString("\n")
	for _, mr := range mrs {
		fmt.Fprintf(&b, "- !%d %s [%s] %s → %s by %s, created %s\n",
			mr.IID, mr.Title, mr.State, mr.SourceBranch, mr.TargetBranch,
			mr.Author, mr.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}

func bind(rawArgs string, out any) error {
	if rawArgs == "" {
		return nil
	}
	return json.Unmarshal([]byte(rawArgs), out)
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

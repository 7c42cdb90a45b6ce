package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"opschat/dates"
	"opschat/shared"
	"opschat/sharepoint"
)

// SharePointTools builds the tool endpoints backed by the SharePoint
// client.
type SharePointTools struct {
	Client       *sharepoint.Client
	DefaultLists []string
	Now          func() time.Time
}

func NewSharePointTools(client *sharepoint.Client, defaultLists []string) *SharePointTools {
	return &SharePointTools{Client: client, DefaultLists: defaultLists, Now: time.Now}
}

func (s *SharePointTools) Endpoints() []ToolEndPoint {
	return []ToolEndPoint{
		s.ListFormsTool(),
		s.GetFormTool(),
		s.SearchFormsTool(),
		s.GetListsTool(),
		s.HealthCheckTool(),
	}
}

type listFormsArgs struct {
	ListName  string `json:"list_name"`
	Month     string `json:"month"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
	Status    string `json:"status"`
	CreatedBy string `json:"created_by"`
	Limit     int    `json:"limit"`
}

func (s *SharePointTools) ListFormsTool() ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "list_sharepoint_forms",
		Description: "List SharePoint forms from the specified list with filtering options.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"list_name": {
					Type:        jsonschema.String,
					Description: "SharePoint list name. Defaults to 'Forms'.",
				},
				"month": {
					Type:        jsonschema.String,
					Description: "Month filter like 'January', 'this month', 'last month'.",
				},
				"date_from": {
					Type:        jsonschema.String,
					Description: "Start date (YYYY-MM-DD), overrides month.",
				},
				"date_to": {
					Type:        jsonschema.String,
					Description: "End date (YYYY-MM-DD), overrides month.",
				},
				"status": {
					Type:        jsonschema.String,
					Description: "Filter by form status, e.g. 'Pending'.",
				},
				"created_by": {
					Type:        jsonschema.String,
					Description: "Filter by author display name.",
				},
				"limit": {
					Type:        jsonschema.Integer,
					Description: "Maximum number of forms to return.",
				},
			},
		},
	}
	handler := func(ctx context.Context, rawArgs string) (string, error) {
		args := listFormsArgs{ListName: "Forms", Limit: 50}
		if err := bind(rawArgs, &args); err != nil {
			return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: err.Error()}
		}

		query := sharepoint.FormQuery{
			Status:    args.Status,
			CreatedBy: args.CreatedBy,
			Limit:     args.Limit,
		}
		if start, end, ok := dates.ParseMonth(args.Month, s.Now()); ok {
			query.DateFrom = start
			query.DateTo = end
		}
		if args.DateFrom != "" {
			t, err := time.Parse("2006-01-02", args.DateFrom)
			if err != nil {
				return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: "date_from must be a YYYY-MM-DD date"}
			}
			query.DateFrom = t
		}
		if args.DateTo != "" {
			t, err := time.Parse("2006-01-02", args.DateTo)
			if err != nil {
				return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: "date_to must be a YYYY-MM-DD date"}
			}
			query.DateTo = t
		}

		forms, err := s.Client.ListForms(ctx, args.ListName, query)
		if err != nil {
			return "", err
		}
		return renderForms(forms, args), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

type getFormArgs struct {
	ListName string `json:"list_name"`
	FormID   string `json:"form_id"`
}

func (s *SharePointTools) GetFormTool() ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "get_sharepoint_form",
		Description: "Fetch a single SharePoint form by its id.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"list_name": {
					Type:        jsonschema.String,
					Description: "SharePoint list name. Defaults to 'Forms'.",
				},
				"form_id": {
					Type:        jsonschema.String,
					Description: "Numeric id of the form.",
				},
			},
			Required: []string{"form_id"},
		},
	}
	handler := func(ctx context.Context, rawArgs string) (string, error) {
		args := getFormArgs{ListName: "Forms"}
		if err := bind(rawArgs, &args); err != nil {
			return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: err.Error()}
		}
		id, err := strconv.Atoi(args.FormID)
		if err != nil {
			return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: "form_id must be numeric"}
		}

		form, err := s.Client.GetForm(ctx, args.ListName, id)
		if err != nil {
			return "", err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Form %s from %s\n", form.ID, form.ListName)
		fmt.Fprintf(&b, "Title: %s\nAuthor: %s\nStatus: %s\nCreated: %s\n",
			form.Title, form.Author, orNone(form.Status), form.CreatedAt.Format("2006-01-02"))
		for _, name := range sortedFieldNames(form.Fields) {
			fmt.Fprintf(&b, "%s: %s\n", name, form.Fields[name])
		}
		return b.String(), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

type searchFormsArgs struct {
	Query    string `json:"query"`
	ListName string `json:"list_name"`
	Limit    int    `json:"limit"`
}

func (s *SharePointTools) SearchFormsTool() ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "search_sharepoint_forms",
		Description: "Search SharePoint forms by free-text query over titles and field values.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {
					Type:        jsonschema.String,
					Description: "Text to search for.",
				},
				"list_name": {
					Type:        jsonschema.String,
					Description: "SharePoint list name. Defaults to 'Forms'.",
				},
				"limit": {
					Type:        jsonschema.Integer,
					Description: "Maximum number of matching forms to return.",
				},
			},
			Required: []string{"query"},
		},
	}
	handler := func(ctx context.Context, rawArgs string) (string, error) {
		args := searchFormsArgs{ListName: "Forms", Limit: 20}
		if err := bind(rawArgs, &args); err != nil {
			return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: err.Error()}
		}
		if strings.TrimSpace(args.Query) == "" {
			return "", &shared.InvalidArgumentsError{Tool: def.Name, Reason: "query must not be empty"}
		}

		// Overfetch, then match client-side over title and field values.
		forms, err := s.Client.ListForms(ctx, args.ListName, sharepoint.FormQuery{Limit: args.Limit * 2})
		if err != nil {
			return "", err
		}

		matches := make([]shared.FormEntry, 0, args.Limit)
		for _, form := range forms {
			if matchesQuery(form, args.Query) {
				matches = append(matches, form)
			}
			if len(matches) >= args.Limit {
				break
			}
		}

		out := fmt.Sprintf("Found %d forms matching %q in %s\n\n", len(matches), args.Query, args.ListName)
		return out + renderForms(matches, listFormsArgs{ListName: args.ListName}), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

func matchesQuery(form shared.FormEntry, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(form.Title), q) {
		return true
	}
	for _, value := range form.Fields {
		if strings.Contains(strings.ToLower(value), q) {
			return true
		}
	}
	return false
}

func (s *SharePointTools) GetListsTool() ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "get_sharepoint_lists",
		Description: "Enumerate the lists available on the configured SharePoint site.",
		Parameters: jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: map[string]jsonschema.Definition{},
		},
	}
	handler := func(ctx context.Context, _ string) (string, error) {
		lists, err := s.Client.GetLists(ctx)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d lists on the SharePoint site:\n", len(lists))
		for _, l := range lists {
			fmt.Fprintf(&b, "- %s (%d items)", l.Title, l.ItemCount)
			if l.Description != "" {
				fmt.Fprintf(&b, " - %s", l.Description)
			}
			b.WriteByte('\n')
		}
		return b.String(), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

func (s *SharePointTools) HealthCheckTool() ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "sharepoint_health_check",
		Description: "Check the SharePoint site connection and default list access.",
		Parameters: jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: map[string]jsonschema.Definition{},
		},
	}
	handler := func(ctx context.Context, _ string) (string, error) {
		if err := s.Client.Ping(ctx); err != nil {
			return "", err
		}
		var b strings.Builder
		b.WriteString("SharePoint connection: ok\n")
		accessible := 0
		for _, listName := range s.DefaultLists {
			if _, err := s.Client.ListForms(ctx, listName, sharepoint.FormQuery{Limit: 1}); err != nil {
				fmt.Fprintf(&b, "- list %s: not accessible\n", listName)
				continue
			}
			accessible++
			fmt.Fprintf(&b, "- list %s: accessible\n", listName)
		}
		fmt.Fprintf(&b, "%d/%d lists accessible\n", accessible, len(s.DefaultLists))
		return b.String(), nil
	}
	return ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

func renderForms(forms []shared.FormEntry, args listFormsArgs) string {
	var b strings.Builder
	b.WriteString("## Forms Summary\n\n")
	fmt.Fprintf(&b, "List: %s\n", args.ListName)
	fmt.Fprintf(&b, "Filters: month=%s status=%s created_by=%s\n",
		orAll(args.Month), orAll(args.Status), orAll(args.CreatedBy))
	fmt.Fprintf(&b, "Total forms: %d\n", len(forms))

	if len(forms) == 0 {
		b.WriteString("\nNo forms found for the specified criteria.\n")
		return b.String()
	}

	statusCount := map[string]int{}
	for _, form := range forms {
		statusCount[orNone(form.Status)]++
	}
	b.WriteString("\nBy status:\n")
	for _, status := range sortedKeys(statusCount) {
		fmt.Fprintf(&b, "- %s: %d\n", status, statusCount[status])
	}

	b.WriteString("\nForms:\n")
	for _, form := range forms {
		fmt.Fprintf(&b, "- #%s %s [%s] by %s, created %s\n",
			form.ID, form.Title, orNone(form.Status), form.Author,
			form.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

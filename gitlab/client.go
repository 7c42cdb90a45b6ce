// Package gitlab is a thin client for the GitLab REST API (v4). It issues
// authenticated JSON requests and parses responses into the shared record
// types; everything beyond that is the remote service's contract.
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"opschat/config"
	"opschat/shared"
)

const (
	requestTimeout = 30 * time.Second
	apiRate        = 10 // requests per second against the GitLab API
)

// Client talks to one GitLab instance. It is stateless apart from the
// rate limiter and safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.GitLab) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(apiRate), apiRate),
	}
}

// IssueQuery narrows ListIssues. Zero values mean "no filter"; State
// defaults to "opened" at the tool layer.
type IssueQuery struct {
	State         string
	Labels        string
	Assignee      string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// Project is the subset of GitLab project metadata the assistant needs.
type Project struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	WebURL string `json:"web_url"`
}

type issueJSON struct {
	IID         int       `json:"iid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	Labels      []string  `json:"labels"`
	Author      *userJSON `json:"author"`
	Assignee    *userJSON `json:"assignee"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	WebURL      string    `json:"web_url"`
}

type mergeRequestJSON struct {
	IID          int       `json:"iid"`
	Title        string    `json:"title"`
	State        string    `json:"state"`
	Author       *userJSON `json:"author"`
	SourceBranch string    `json:"source_branch"`
	TargetBranch string    `json:"target_branch"`
	CreatedAt    time.Time `json:"created_at"`
	WebURL       string    `json:"web_url"`
}

type userJSON struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// GetProject fetches project metadata, mainly for its display name.
func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := c.get(ctx, "/api/v4/projects/"+url.PathEscape(projectID), nil, &p)
	return p, err
}

// ListIssues returns issues for one project, newest first as ordered by
// the API. Assignee matching is a case-insensitive substring check done
// client side, mirroring how people type names in chat.
func (c *Client) ListIssues(ctx context.Context, projectID string, q IssueQuery) ([]shared.Issue, error) {
	params := url.Values{}
	params.Set("order_by", "created_at")
	params.Set("sort", "desc")
	if q.State != "" && q.State != "all" {
		params.Set("state", q.State)
	}
	if q.Labels != "" {
		params.Set("labels", q.Labels)
	}
	if !q.CreatedAfter.IsZero() {
		params.Set("created_after", q.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if !q.CreatedBefore.IsZero() {
		params.Set("created_before", q.CreatedBefore.UTC().Format(time.RFC3339))
	}
	if q.Limit > 0 && q.Limit <= 100 {
		params.Set("per_page", strconv.Itoa(q.Limit))
	} else {
		params.Set("per_page", "100")
	}

	var raw []issueJSON
	if err := c.get(ctx, "/api/v4/projects/"+url.PathEscape(projectID)+"/issues", params, &raw); err != nil {
		return nil, err
	}

	proj, err := c.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	issues := make([]shared.Issue, 0, len(raw))
	for _, in := range raw {
		assignee := ""
		if in.Assignee != nil {
			assignee = in.Assignee.Name
		}
		if q.Assignee != "" && !strings.Contains(strings.ToLower(assignee), strings.ToLower(q.Assignee)) {
			continue
		}
		author := "Unknown"
		if in.Author != nil {
			author = in.Author.Name
		}
		issues = append(issues, shared.Issue{
			ProjectID:   projectID,
			ProjectName: proj.Name,
			IID:         in.IID,
			Title:       in.Title,
			Description: truncate(in.Description, 200),
			State:       in.State,
			Author:      author,
			Assignee:    assignee,
			Labels:      in.Labels,
			CreatedAt:   in.CreatedAt,
			UpdatedAt:   in.UpdatedAt,
			WebURL:      in.WebURL,
		})
		if q.Limit > 0 && len(issues) >= q.Limit {
			break
		}
	}
	return issues, nil
}

// ListMergeRequests returns merge requests for one project.
func (c *Client) ListMergeRequests(ctx context.Context, projectID, state string, limit int) ([]shared.MergeRequest, error) {
	params := url.Values{}
	params.Set("order_by", "created_at")
	params.Set("sort", "desc")
	if state != "" && state != "all" {
		params.Set("state", state)
	}
	if limit > 0 && limit <= 100 {
		params.Set("per_page", strconv.Itoa(limit))
	}

	var raw []mergeRequestJSON
	if err := c.get(ctx, "/api/v4/projects/"+url.PathEscape(projectID)+"/merge_requests", params, &raw); err != nil {
		return nil, err
	}
	proj, err := c.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	mrs := make([]shared.MergeRequest, 0, len(raw))
	for _, in := range raw {
		author := "Unknown"
		if in.Author != nil {
			author = in.Author.Name
		}
		mrs = append(mrs, shared.MergeRequest{
			ProjectID:    projectID,
			ProjectName:  proj.Name,
			IID:          in.IID,
			Title:        in.Title,
			State:        in.State,
			Author:       author,
			SourceBranch: in.SourceBranch,
			TargetBranch: in.TargetBranch,
			CreatedAt:    in.CreatedAt,
			WebURL:       in.WebURL,
		})
		if limit > 0 && len(mrs) >= limit {
			break
		}
	}
	return mrs, nil
}

// Ping verifies the token by fetching the authenticated user.
func (c *Client) Ping(ctx context.Context) error {
	var me struct {
		Username string `json:"username"`
	}
	return c.get(ctx, "/api/v4/user", nil, &me)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &shared.UpstreamError{Service: "gitlab", Err: err}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := c.doWithRetry(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &shared.UpstreamError{Service: "gitlab", Message: "malformed response", Err: err}
	}
	return nil
}

// doWithRetry issues the request, retrying exactly once on a transient
// network failure. HTTP-level failures are never retried.
func (c *Client) doWithRetry(ctx context.Context, u string) ([]byte, error) {
	body, err := c.do(ctx, u)
	if err != nil && isTransient(err) {
		log.Debug().Str("url", u).Err(err).Msg("transient gitlab failure, retrying once")
		body, err = c.do(ctx, u)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &shared.UpstreamError{Service: "gitlab", Err: err}
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, wrapNetErr("gitlab", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapNetErr("gitlab", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &shared.UpstreamError{
			Service:    "gitlab",
			StatusCode: resp.StatusCode,
			Message:    apiMessage(body),
		}
	}
	return body, nil
}

func wrapNetErr(service string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &shared.UpstreamError{Service: service, Timeout: true, Err: err}
	}
	return &shared.UpstreamError{Service: service, Err: err}
}

func isTransient(err error) bool {
	var ue *shared.UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 0 {
		return false
	}
	if ue.Timeout {
		return true
	}
	return errors.Is(ue.Err, syscall.ECONNRESET) || errors.Is(ue.Err, io.ErrUnexpectedEOF)
}

func apiMessage(body []byte) string {
	var msg struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &msg); err == nil {
		if msg.Error != "" {
			return msg.Error
		}
		if msg.Message != nil {
			return fmt.Sprintf("%v", msg.Message)
		}
	}
	return truncate(string(body), 200)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

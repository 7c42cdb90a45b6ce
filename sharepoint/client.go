// Package sharepoint is a thin client for the SharePoint REST API. It
// reads list items ("forms") and list metadata from one site, using either
// app-only client credentials (an OAuth2 bearer token) or basic user
// credentials for on-prem deployments.
package sharepoint

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
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"opschat/config"
	"opschat/shared"
)

const (
	requestTimeout = 30 * time.Second
	apiRate        = 5
	tokenEndpoint  = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// Client talks to one SharePoint site. Safe for concurrent use; the only
// mutable state is the cached bearer token.
type Client struct {
	siteURL string
	cfg     config.SharePoint
	httpc   *http.Client
	limiter *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.SharePoint) *Client {
	return &Client{
		siteURL: strings.TrimRight(cfg.SiteURL, "/"),
		cfg:     cfg,
		httpc:   &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(apiRate), apiRate),
	}
}

// FormQuery narrows ListForms. Zero values mean "no filter".
type FormQuery struct {
	DateFrom  time.Time
	DateTo    time.Time
	Status    string
	CreatedBy string
	Limit     int
}

type itemJSON struct {
	ID       int             `json:"Id"`
	Title    string          `json:"Title"`
	Created  time.Time       `json:"Created"`
	Modified time.Time       `json:"Modified"`
	Status   string          `json:"Status"`
	Author   *principalJSON  `json:"Author"`
	Editor   *principalJSON  `json:"Editor"`
}

type principalJSON struct {
	Title string `json:"Title"`
}

type listJSON struct {
	Title        string    `json:"Title"`
	Description  string    `json:"Description"`
	ItemCount    int       `json:"ItemCount"`
	BaseTemplate int       `json:"BaseTemplate"`
	Created      time.Time `json:"Created"`
}

// ListForms returns items from the named list, newest first.
func (c *Client) ListForms(ctx context.Context, listName string, q FormQuery) ([]shared.FormEntry, error) {
	params := url.Values{}
	params.Set("$expand", "Author,Editor")
	params.Set("$orderby", "Created desc")
	top := q.Limit
	if top <= 0 || top > 500 {
		top = 50
	}
	params.Set("$top", strconv.Itoa(top))
	if filter := buildFilter(q); filter != "" {
		params.Set("$filter", filter)
	}

	path := fmt.Sprintf("/_api/web/lists/GetByTitle('%s')/items", escapeListName(listName))
	var out struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := c.get(ctx, path, params, &out); err != nil {
		return nil, err
	}

	forms := make([]shared.FormEntry, 0, len(out.Value))
	for _, raw := range out.Value {
		entry, err := parseItem(raw, listName, c.siteURL)
		if err != nil {
			continue
		}
		forms = append(forms, entry)
	}
	return forms, nil
}

// GetForm fetches a single list item by id.
func (c *Client) GetForm(ctx context.Context, listName string, id int) (shared.FormEntry, error) {
	path := fmt.Sprintf("/_api/web/lists/GetByTitle('%s')/items(%d)", escapeListName(listName), id)
	params := url.Values{}
	params.Set("$expand", "Author,Editor")

	var raw json.RawMessage
	if err := c.get(ctx, path, params, &raw); err != nil {
		return shared.FormEntry{}, err
	}
	return parseItem(raw, listName, c.siteURL)
}

// GetLists enumerates the visible lists on the site.
func (c *Client) GetLists(ctx context.Context) ([]shared.ListInfo, error) {
	params := url.Values{}
	params.Set("$filter", "Hidden eq false")

	var out struct {
		Value []listJSON `json:"value"`
	}
	if err := c.get(ctx, "/_api/web/lists", params, &out); err != nil {
		return nil, err
	}

	lists := make([]shared.ListInfo, 0, len(out.Value))
	for _, in := range out.Value {
		lists = append(lists, shared.ListInfo{
			Title:       in.Title,
			Description: in.Description,
			ItemCount:   in.ItemCount,
			Template:    in.BaseTemplate,
			CreatedAt:   in.Created,
		})
	}
	return lists, nil
}

// Ping verifies site access by fetching the web title.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Title string `json:"Title"`
	}
	return c.get(ctx, "/_api/web", url.Values{"$select": {"Title"}}, &out)
}

func buildFilter(q FormQuery) string {
	var conds []string
	if !q.DateFrom.IsZero() {
		conds = append(conds, fmt.Sprintf("Created ge datetime'%s'", q.DateFrom.UTC().Format("2006-01-02T15:04:05Z")))
	}
	if !q.DateTo.IsZero() {
		// DateTo is the exclusive end of a half-open range.
		conds = append(conds, fmt.Sprintf("Created lt datetime'%s'", q.DateTo.UTC().Format("2006-01-02T15:04:05Z")))
	}
	if q.Status != "" {
		conds = append(conds, fmt.Sprintf("Status eq '%s'", strings.ReplaceAll(q.Status, "'", "''")))
	}
	if q.CreatedBy != "" {
		conds = append(conds, fmt.Sprintf("Author/Title eq '%s'", strings.ReplaceAll(q.CreatedBy, "'", "''")))
	}
	return strings.Join(conds, " and ")
}

func escapeListName(name string) string {
	return strings.ReplaceAll(name, "'", "''")
}

var knownItemFields = map[string]bool{
	"Id": true, "ID": true, "Title": true, "Created": true, "Modified": true,
	"Status": true, "Author": true, "Editor": true,
}

func parseItem(raw json.RawMessage, listName, siteURL string) (shared.FormEntry, error) {
	var in itemJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return shared.FormEntry{}, err
	}

	entry := shared.FormEntry{
		ID:        strconv.Itoa(in.ID),
		Title:     in.Title,
		ListName:  listName,
		Status:    in.Status,
		CreatedAt: in.Created,
		UpdatedAt: in.Modified,
		Fields:    map[string]string{},
		WebURL:    fmt.Sprintf("%s/Lists/%s/DispForm.aspx?ID=%d", siteURL, url.PathEscape(listName), in.ID),
	}
	if in.Author != nil {
		entry.Author = in.Author.Title
	}
	if in.Editor != nil {
		entry.Editor = in.Editor.Title
	}

	// Everything outside the well-known columns is kept as a free-form
	// name→value field for rendering.
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flat); err == nil {
		for name, val := range flat {
			if knownItemFields[name] || strings.HasPrefix(name, "odata") || strings.HasPrefix(name, "__") {
				continue
			}
			var s string
			if err := json.Unmarshal(val, &s); err == nil {
				if s != "" {
					entry.Fields[name] = s
				}
				continue
			}
			var n float64
			if err := json.Unmarshal(val, &n); err == nil {
				entry.Fields[name] = strconv.FormatFloat(n, 'f', -1, 64)
			}
		}
	}
	return entry, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &shared.UpstreamError{Service: "sharepoint", Err: err}
	}

	u := c.siteURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := c.doWithRetry(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &shared.UpstreamError{Service: "sharepoint", Message: "malformed response", Err: err}
	}
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, u string) ([]byte, error) {
	body, err := c.do(ctx, u)
	if err != nil && isTransient(err) {
		log.Debug().Str("url", u).Err(err).Msg("transient sharepoint failure, retrying once")
		body, err = c.do(ctx, u)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &shared.UpstreamError{Service: "sharepoint", Err: err}
	}
	req.Header.Set("Accept", "application/json;odata=nometadata")
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, wrapNetErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapNetErr(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &shared.UpstreamError{
			Service:    "sharepoint",
			StatusCode: resp.StatusCode,
			Message:    apiMessage(body),
		}
	}
	return body, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.cfg.AuthType() == "user_credentials" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
		return nil
	}
	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// bearerToken fetches (and caches) an app-only token via the client
// credentials grant.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	site, err := url.Parse(c.siteURL)
	if err != nil {
		return "", &shared.UpstreamError{Service: "sharepoint", Err: err}
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", fmt.Sprintf("https://%s/.default", site.Host))

	endpoint := fmt.Sprintf(tokenEndpoint, c.cfg.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &shared.UpstreamError{Service: "sharepoint", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", wrapNetErr(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapNetErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &shared.UpstreamError{
			Service:    "sharepoint",
			StatusCode: resp.StatusCode,
			Message:    "token request failed: " + apiMessage(body),
		}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", &shared.UpstreamError{Service: "sharepoint", Message: "malformed token response", Err: err}
	}
	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func wrapNetErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &shared.UpstreamError{Service: "sharepoint", Timeout: true, Err: err}
	}
	return &shared.UpstreamError{Service: "sharepoint", Err: err}
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
		Error struct {
			Message struct {
				Value string `json:"value"`
			} `json:"message"`
		} `json:"odata.error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &msg); err == nil {
		if msg.Error.Message.Value != "" {
			return msg.Error.Message.Value
		}
		if msg.Description != "" {
			return msg.Description
		}
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

package gitlab

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opschat/config"
	"opschat/shared"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GitLab{URL: srv.URL, Token: "glpat-test", ProjectIDs: []string{"7"}})
}

const issuesBody = `[
	{"iid": 42, "title": "Crash on login", "description": "stacktrace attached", "state": "opened",
	 "labels": ["bug", "high-priority"], "author": {"name": "Dana"}, "assignee": {"name": "Marta Kos"},
	 "created_at": "2024-01-12T09:00:00Z", "updated_at": "2024-01-13T09:00:00Z",
	 "web_url": "https://gitlab.example.com/g/p/-/issues/42"},
	{"iid": 41, "title": "Add export button", "description": "", "state": "closed",
	 "labels": [], "author": {"name": "Ivo"}, "assignee": null,
	 "created_at": "2024-01-10T09:00:00Z", "updated_at": "2024-01-10T10:00:00Z",
	 "web_url": "https://gitlab.example.com/g/p/-/issues/41"}
]`

func TestListIssues(t *testing.T) {
	t.Run("parses issues and filters", func(t *testing.T) {
		var gotQuery string
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "glpat-test", r.Header.Get("PRIVATE-TOKEN"))
			switch r.URL.Path {
			case "/api/v4/projects/7/issues":
				gotQuery = r.URL.RawQuery
				w.Write([]byte(issuesBody))
			case "/api/v4/projects/7":
				w.Write([]byte(`{"id": 7, "name": "payments"}`))
			default:
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
		}))

		after := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
		issues, err := c.ListIssues(context.Background(), "7", IssueQuery{
			State:        "opened",
			CreatedAfter: after,
			Limit:        10,
		})
		require.NoError(t, err)
		require.Len(t, issues, 2)
		assert.Equal(t, 42, issues[0].IID)
		assert.Equal(t, "payments", issues[0].ProjectName)
		assert.Equal(t, "Marta Kos", issues[0].Assignee)
		assert.Contains(t, gotQuery, "state=opened")
		assert.Contains(t, gotQuery, "created_after=2024-01-01T00%3A00%3A00Z")
	})

	t.Run("assignee filter is a substring match", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v4/projects/7" {
				w.Write([]byte(`{"id": 7, "name": "payments"}`))
				return
			}
			w.Write([]byte(issuesBody))
		}))

		issues, err := c.ListIssues(context.Background(), "7", IssueQuery{Assignee: "marta"})
		require.NoError(t, err)
		require.Len(t, issues, 1)
		assert.Equal(t, 42, issues[0].IID)
	})

	t.Run("http failure becomes UpstreamError", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message": "401 Unauthorized"}`, http.StatusUnauthorized)
		}))

		_, err := c.ListIssues(context.Background(), "7", IssueQuery{})
		var ue *shared.UpstreamError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, http.StatusUnauthorized, ue.StatusCode)
		assert.Equal(t, "gitlab", ue.Service)
	})
}

func TestTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(slow.Close)

	c := NewClient(config.GitLab{URL: slow.URL, Token: "t", ProjectIDs: []string{"7"}})
	c.httpc.Timeout = 20 * time.Millisecond

	err := c.Ping(context.Background())
	var ue *shared.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.True(t, ue.Timeout)
	assert.True(t, shared.IsUpstreamTimeout(err))
}

func TestRetryOnTransient(t *testing.T) {
	// First attempt times out, the single retry succeeds.
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			time.Sleep(100 * time.Millisecond)
			return
		}
		w.Write([]byte(`{"username": "bot"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.GitLab{URL: srv.URL, Token: "t", ProjectIDs: []string{"7"}})
	c.httpc.Timeout = 50 * time.Millisecond

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestNoRetryOnHTTPError(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message": "boom"}`, http.StatusInternalServerError)
	}))

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestMergeRequests(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/projects/7/merge_requests":
			w.Write([]byte(`[{"iid": 9, "title": "Refactor billing", "state": "merged",
				"author": {"name": "Dana"}, "source_branch": "billing-refactor", "target_branch": "main",
				"created_at": "2024-02-01T08:00:00Z", "web_url": "https://gitlab.example.com/g/p/-/merge_requests/9"}]`))
		case "/api/v4/projects/7":
			w.Write([]byte(`{"id": 7, "name": "payments"}`))
		}
	}))

	mrs, err := c.ListMergeRequests(context.Background(), "7", "merged", 10)
	require.NoError(t, err)
	require.Len(t, mrs, 1)
	assert.Equal(t, "Refactor billing", mrs[0].Title)
	assert.Equal(t, "main", mrs[0].TargetBranch)
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opschat/config"
	"opschat/gitlab"
	"opschat/sharepoint"
)

func gitlabToolsWithStatus(t *testing.T, status int) *GitLabTools {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, `{"message": "unavailable"}`, status)
			return
		}
		_, _ = w.Write([]byte(`{"username": "svc"}`))
	}))
	t.Cleanup(srv.Close)
	client := gitlab.NewClient(config.GitLab{URL: srv.URL, Token: "t", ProjectIDs: []string{"7"}})
	return NewGitLabTools(client, []string{"7"})
}

func sharepointToolsWithStatus(t *testing.T, status int) *SharePointTools {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, `{"odata.error": {"message": {"value": "unavailable"}}}`, status)
			return
		}
		_, _ = w.Write([]byte(`{"Title": "Ops"}`))
	}))
	t.Cleanup(srv.Close)
	client := sharepoint.NewClient(config.SharePoint{
		SiteURL:  srv.URL,
		Username: "svc-forms",
		Password: "secret",
	})
	return NewSharePointTools(client, []string{"Forms"})
}

func TestCombinedHealthTool(t *testing.T) {
	t.Run("both healthy", func(t *testing.T) {
		tool := CombinedHealthTool(
			gitlabToolsWithStatus(t, http.StatusOK),
			sharepointToolsWithStatus(t, http.StatusOK),
		)
		out, err := tool.Handler(context.Background(), `{}`)
		require.NoError(t, err)
		assert.Contains(t, out, "GitLab: ok (1 projects configured)")
		assert.Contains(t, out, "SharePoint: ok (1 default lists)")
		assert.Contains(t, out, "Overall status: healthy")
	})

	t.Run("one side down degrades without error", func(t *testing.T) {
		tool := CombinedHealthTool(
			gitlabToolsWithStatus(t, http.StatusServiceUnavailable),
			sharepointToolsWithStatus(t, http.StatusOK),
		)
		out, err := tool.Handler(context.Background(), `{}`)
		require.NoError(t, err)
		assert.Contains(t, out, "GitLab: unreachable")
		assert.Contains(t, out, "SharePoint: ok")
		assert.Contains(t, out, "Overall status: degraded")
	})

	t.Run("both down is unhealthy", func(t *testing.T) {
		tool := CombinedHealthTool(
			gitlabToolsWithStatus(t, http.StatusServiceUnavailable),
			sharepointToolsWithStatus(t, http.StatusServiceUnavailable),
		)
		out, err := tool.Handler(context.Background(), `{}`)
		require.NoError(t, err)
		assert.Contains(t, out, "Overall status: unhealthy")
	})

	t.Run("sharepoint unconfigured does not degrade", func(t *testing.T) {
		tool := CombinedHealthTool(gitlabToolsWithStatus(t, http.StatusOK), nil)
		out, err := tool.Handler(context.Background(), `{}`)
		require.NoError(t, err)
		assert.Contains(t, out, "SharePoint: not configured")
		assert.Contains(t, out, "Overall status: healthy")
	})
}

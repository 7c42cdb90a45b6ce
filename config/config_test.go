package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opschat/shared"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("GITLAB_URL", "https://gitlab.example.com")
	t.Setenv("GITLAB_TOKEN", "glpat-test")
	t.Setenv("GITLAB_PROJECT_IDS", "101, 202")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SHAREPOINT_SITE_URL", "")
}

func TestLoad(t *testing.T) {
	t.Run("full gitlab config", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "https://gitlab.example.com", cfg.GitLab.URL)
		assert.Equal(t, []string{"101", "202"}, cfg.GitLab.ProjectIDs)
		assert.Nil(t, cfg.SharePoint)
		assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	})

	t.Run("missing gitlab token fails fast", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("GITLAB_TOKEN", "")

		_, err := Load()
		var ce *shared.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "GITLAB_TOKEN", ce.Field)
	})

	t.Run("missing project ids fails fast", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("GITLAB_PROJECT_IDS", " , ")

		_, err := Load()
		var ce *shared.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "GITLAB_PROJECT_IDS", ce.Field)
	})

	t.Run("missing openai key allowed", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("OPENAI_API_KEY", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Empty(t, cfg.OpenAI.APIKey)
	})

	t.Run("sharepoint needs credentials", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SHAREPOINT_SITE_URL", "https://contoso.sharepoint.com/sites/ops")

		_, err := Load()
		var ce *shared.ConfigError
		require.True(t, errors.As(err, &ce))
	})

	t.Run("sharepoint app credentials", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SHAREPOINT_SITE_URL", "https://contoso.sharepoint.com/sites/ops")
		t.Setenv("SHAREPOINT_CLIENT_ID", "client")
		t.Setenv("SHAREPOINT_CLIENT_SECRET", "secret")
		t.Setenv("SHAREPOINT_TENANT_ID", "tenant")

		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg.SharePoint)
		assert.Equal(t, "app_only", cfg.SharePoint.AuthType())
		assert.Equal(t, []string{"Forms", "Documents", "Lists"}, cfg.SharePoint.DefaultLists)
	})

	t.Run("app credentials require tenant id", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SHAREPOINT_SITE_URL", "https://contoso.sharepoint.com/sites/ops")
		t.Setenv("SHAREPOINT_CLIENT_ID", "client")
		t.Setenv("SHAREPOINT_CLIENT_SECRET", "secret")

		_, err := Load()
		var ce *shared.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "SHAREPOINT_TENANT_ID", ce.Field)
	})

	t.Run("sharepoint user credentials", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SHAREPOINT_SITE_URL", "https://sp.internal.example.com/sites/ops")
		t.Setenv("SHAREPOINT_USERNAME", "svc-forms")
		t.Setenv("SHAREPOINT_PASSWORD", "hunter2")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "user_credentials", cfg.SharePoint.AuthType())
	})
}

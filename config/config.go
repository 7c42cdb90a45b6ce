// Package config loads application settings from the environment. All
// credentials come from env vars (optionally via a .env file); anything
// required but missing fails fast at startup with a ConfigError.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"opschat/shared"
)

// GitLab holds connection settings for the GitLab REST API.
type GitLab struct {
	URL        string   `validate:"required,url"`
	Token      string   `validate:"required"`
	ProjectIDs []string `validate:"required,min=1,dive,required"`
}

// SharePoint holds connection settings for the SharePoint REST API.
// Either Username/Password or ClientID/ClientSecret must be present.
type SharePoint struct {
	SiteURL      string `validate:"required,url"`
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	TenantID     string
	DefaultLists []string
}

// AuthType reports which credential pair is in use.
func (s *SharePoint) AuthType() string {
	switch {
	case s.ClientID != "" && s.ClientSecret != "":
		return "app_only"
	case s.Username != "" && s.Password != "":
		return "user_credentials"
	default:
		return "none"
	}
}

// OpenAI holds the LLM API settings. An empty APIKey is allowed: the
// agents then fall back to deterministic keyword-based tool selection.
type OpenAI struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Config is the full application configuration. SharePoint is optional:
// when its env vars are absent the SharePoint agent is simply not wired.
type Config struct {
	GitLab     GitLab
	SharePoint *SharePoint
	OpenAI     OpenAI
}

const (
	defaultGitLabURL    = "https://gitlab.com"
	defaultModel        = "gpt-4o"
	defaultDefaultLists = "Forms,Documents,Lists"
)

// Load reads configuration from the environment. A .env file in the
// working directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		GitLab: GitLab{
			URL:        envOr("GITLAB_URL", defaultGitLabURL),
			Token:      os.Getenv("GITLAB_TOKEN"),
			ProjectIDs: splitList(os.Getenv("GITLAB_PROJECT_IDS")),
		},
		OpenAI: OpenAI{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   envOr("OPENAI_MODEL", defaultModel),
		},
	}

	if siteURL := os.Getenv("SHAREPOINT_SITE_URL"); siteURL != "" {
		cfg.SharePoint = &SharePoint{
			SiteURL:      siteURL,
			Username:     os.Getenv("SHAREPOINT_USERNAME"),
			Password:     os.Getenv("SHAREPOINT_PASSWORD"),
			ClientID:     os.Getenv("SHAREPOINT_CLIENT_ID"),
			ClientSecret: os.Getenv("SHAREPOINT_CLIENT_SECRET"),
			TenantID:     os.Getenv("SHAREPOINT_TENANT_ID"),
			DefaultLists: splitList(envOr("SHAREPOINT_DEFAULT_LISTS", defaultDefaultLists)),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the loaded configuration and returns a ConfigError
// naming the first offending setting.
func (c *Config) Validate() error {
	if c.GitLab.Token == "" {
		return shared.NewConfigError("GITLAB_TOKEN", "environment variable is required")
	}
	if len(c.GitLab.ProjectIDs) == 0 {
		return shared.NewConfigError("GITLAB_PROJECT_IDS", "environment variable is required")
	}
	if err := validate.Struct(c.GitLab); err != nil {
		return translateValidation("GITLAB", err)
	}

	if sp := c.SharePoint; sp != nil {
		if err := validate.Struct(sp); err != nil {
			return translateValidation("SHAREPOINT", err)
		}
		switch sp.AuthType() {
		case "none":
			return shared.NewConfigError("SHAREPOINT_USERNAME/SHAREPOINT_CLIENT_ID",
				"either username/password or client_id/client_secret must be provided")
		case "app_only":
			// The token URL embeds the tenant, so a missing tenant only
			// surfaces at the first request unless caught here.
			if sp.TenantID == "" {
				return shared.NewConfigError("SHAREPOINT_TENANT_ID",
					"required for client_id/client_secret authentication")
			}
		}
	}
	return nil
}

func translateValidation(prefix string, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return shared.NewConfigError(prefix, err.Error())
	}
	fe := verrs[0]
	return shared.NewConfigError(
		fmt.Sprintf("%s_%s", prefix, strings.ToUpper(fe.Field())),
		fmt.Sprintf("failed %q validation", fe.Tag()),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

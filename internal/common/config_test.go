package common

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
[jira]
url = "https://jira.example.com"
username = "sync-bot"
token = "secret-token"

[repo]
path = "/srv/tickets"

[identity]
user = "sync-bot"
email = "sync-bot@example.com"
`

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Jira.URL != "https://jira.example.com" {
		t.Errorf("jira url = %q", cfg.Jira.URL)
	}
	if cfg.Repo.Path != "/srv/tickets" {
		t.Errorf("repo path = %q", cfg.Repo.Path)
	}

	// Defaults survive for keys the file does not set.
	if cfg.Sync.Port != 3000 {
		t.Errorf("port = %d, want default 3000", cfg.Sync.Port)
	}
	if cfg.Repo.IssuesDir != "issues" || cfg.Repo.WorklogsDir != "worklogs" {
		t.Errorf("dirs = %q %q", cfg.Repo.IssuesDir, cfg.Repo.WorklogsDir)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, validConfig)
	t.Setenv("JIRA_URL", "https://jira.internal.example.com")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("WEBHOOK_SECRET", "hunter2")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Jira.URL != "https://jira.internal.example.com" {
		t.Errorf("env override lost: %q", cfg.Jira.URL)
	}
	if cfg.Sync.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Sync.Port)
	}
	if cfg.Sync.WebhookSecret != "hunter2" {
		t.Errorf("webhook secret = %q", cfg.Sync.WebhookSecret)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	for _, key := range []string{"JIRA_URL", "JIRA_USERNAME", "JIRA_TOKEN", "TRACT_REPO_PATH"} {
		t.Setenv(key, "")
	}

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing jira url",
			content: `
[jira]
username = "sync-bot"
token = "t"

[repo]
path = "/srv/tickets"
`,
		},
		{
			name: "missing credentials",
			content: `
[jira]
url = "https://jira.example.com"

[repo]
path = "/srv/tickets"
`,
		},
		{
			name: "missing repo path",
			content: `
[jira]
url = "https://jira.example.com"
username = "sync-bot"
token = "t"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := &Config{
		Repo: RepoConfig{Path: "/srv/tickets", IssuesDir: "issues", WorklogsDir: "worklogs"},
	}
	if got := cfg.IssuesPath(); got != filepath.Join("/srv/tickets", "issues") {
		t.Errorf("IssuesPath = %q", got)
	}
	if got := cfg.WorklogsPath(); got != filepath.Join("/srv/tickets", "worklogs") {
		t.Errorf("WorklogsPath = %q", got)
	}
}

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Sync     SyncConfig     `toml:"sync"`
	Jira     JiraConfig     `toml:"jira"`
	Repo     RepoConfig     `toml:"repo"`
	Identity IdentityConfig `toml:"identity"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
}

type SyncConfig struct {
	Name          string `toml:"name"`
	Environment   string `toml:"environment"`
	Port          int    `toml:"port"`
	WebhookSecret string `toml:"webhook_secret"`
}

type JiraConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Token    string `toml:"token"`
}

type RepoConfig struct {
	Path        string `toml:"path"`
	IssuesDir   string `toml:"issues_dir"`
	WorklogsDir string `toml:"worklogs_dir"`
}

// IdentityConfig is the fixed actor identity used for every write the
// engine itself performs. Inbound events from this identity are dropped
// by the loop-guard.
type IdentityConfig struct {
	User  string `toml:"user"`
	Email string `toml:"email"`
}

type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	return &Config{
		Sync: SyncConfig{
			Name:        execName,
			Environment: "development",
			Port:        3000,
		},
		Repo: RepoConfig{
			IssuesDir:   "issues",
			WorklogsDir: "worklogs",
		},
		Identity: IdentityConfig{
			User:  "tract-sync",
			Email: "tract-sync@localhost",
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(execDir, "data", execName+".db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		// Auto-detect config file
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		execName := filepath.Base(execPath)
		execName = execName[:len(execName)-len(filepath.Ext(execName))]

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if url := os.Getenv("JIRA_URL"); url != "" {
		config.Jira.URL = url
	}
	if user := os.Getenv("JIRA_USERNAME"); user != "" {
		config.Jira.Username = user
	}
	if token := os.Getenv("JIRA_TOKEN"); token != "" {
		config.Jira.Token = token
	}
	if repoPath := os.Getenv("TRACT_REPO_PATH"); repoPath != "" {
		config.Repo.Path = repoPath
	}
	if syncUser := os.Getenv("SYNC_USER"); syncUser != "" {
		config.Identity.User = syncUser
	}
	if syncEmail := os.Getenv("SYNC_EMAIL"); syncEmail != "" {
		config.Identity.Email = syncEmail
	}
	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		config.Sync.WebhookSecret = secret
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Sync.Port = portNum
		}
	}
}

func (c *Config) Validate() error {
	if c.Jira.URL == "" {
		return fmt.Errorf("jira url is required")
	}
	if c.Jira.Username == "" || c.Jira.Token == "" {
		return fmt.Errorf("jira username and token are required")
	}
	if c.Repo.Path == "" {
		return fmt.Errorf("repo path is required")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path is required")
	}
	if c.Identity.User == "" {
		return fmt.Errorf("identity user is required")
	}

	if c.Sync.Port <= 0 {
		c.Sync.Port = 3000
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}

// IssuesPath returns the absolute path of the ticket document directory.
func (c *Config) IssuesPath() string {
	return filepath.Join(c.Repo.Path, c.Repo.IssuesDir)
}

// WorklogsPath returns the absolute path of the worklog directory.
func (c *Config) WorklogsPath() string {
	return filepath.Join(c.Repo.Path, c.Repo.WorklogsDir)
}

func (c *Config) IsProduction() bool {
	return c.Sync.Environment == "production"
}

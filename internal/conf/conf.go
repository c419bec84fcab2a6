package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/usecase"
	"github.com/DevRickLin/feishu-realname-sync/internal/data"
)

// Flush interval bounds
const (
	MinFlushInterval = 300 * time.Second
	MaxFlushInterval = 600 * time.Second
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Naming rules
	Naming NamingConfig

	// Snapshot persistence
	Storage StorageConfig

	// Reply templates (loaded from YAML)
	Messages *MessagesConfig

	// Health and metrics listener
	HTTPAddr string

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	ChatID    string   // Group whose owner and managers may edit others
	AdminIDs  []string // Extra open_ids allowed to edit others
}

// NamingConfig contains label formatting settings
type NamingConfig struct {
	MaxLabelLength int
}

// StorageConfig contains snapshot persistence settings
type StorageConfig struct {
	Backend            string
	DBPath             string
	GitHub             data.GitHubConfig
	FlushInterval      time.Duration
	ConflictRetryLimit int
	ConflictBackoff    time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Snapshot DB path
	dbPath := os.Getenv("NAMES_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".feishu-realname", "names.db")
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("NAMES_BACKEND")))
	if backend == "" {
		backend = data.BackendSQLite
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	// Load reply templates from YAML
	messagesConfig, _ := LoadMessagesConfig(os.Getenv("MESSAGES_CONFIG_PATH"))

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			ChatID:    os.Getenv("FEISHU_CHAT_ID"),
			AdminIDs:  splitList(os.Getenv("ADMIN_OPEN_IDS")),
		},
		Naming: NamingConfig{
			MaxLabelLength: intEnv("MAX_LABEL_LENGTH", domain.DefaultMaxLabelLength),
		},
		Storage: StorageConfig{
			Backend: backend,
			DBPath:  dbPath,
			GitHub: data.GitHubConfig{
				Token:  os.Getenv("GITHUB_TOKEN"),
				Repo:   os.Getenv("GITHUB_REPO"),
				Path:   envOr("GITHUB_FILE_PATH", "names.json"),
				Branch: envOr("GITHUB_BRANCH", "main"),
			},
			FlushInterval:      ClampFlushInterval(time.Duration(intEnv("FLUSH_INTERVAL_SECONDS", 300)) * time.Second),
			ConflictRetryLimit: intEnv("CONFLICT_RETRY_LIMIT", usecase.DefaultPersistConfig.ConflictRetryLimit),
			ConflictBackoff:    time.Duration(intEnv("CONFLICT_BACKOFF_MS", 500)) * time.Millisecond,
		},
		Messages: messagesConfig,
		HTTPAddr: httpAddr,
		Debug:    os.Getenv("DEBUG") == "true",
	}
}

// ClampFlushInterval keeps the periodic flush between five and ten minutes
func ClampFlushInterval(d time.Duration) time.Duration {
	if d < MinFlushInterval {
		return MinFlushInterval
	}
	if d > MaxFlushInterval {
		return MaxFlushInterval
	}
	return d
}

// ToPersistConfig converts to the persister configuration
func (c *StorageConfig) ToPersistConfig() usecase.PersistConfig {
	return usecase.PersistConfig{
		ConflictRetryLimit: c.ConflictRetryLimit,
		ConflictBackoff:    c.ConflictBackoff,
	}
}

// ToSyncConfig converts to the sync engine configuration
func (c *Config) ToSyncConfig() usecase.SyncConfig {
	return usecase.SyncConfig{MaxLabelLength: c.Naming.MaxLabelLength}
}

// ToDataOptions converts to repository options
func (c *Config) ToDataOptions() data.Options {
	return data.Options{
		Backend:  c.Storage.Backend,
		DBPath:   c.Storage.DBPath,
		GitHub:   c.Storage.GitHub,
		ChatID:   c.Feishu.ChatID,
		AdminIDs: c.Feishu.AdminIDs,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	return c.ValidateStorage()
}

// ValidateStorage validates only the snapshot settings, for tools that
// never talk to Feishu
func (c *Config) ValidateStorage() error {
	switch c.Storage.Backend {
	case data.BackendSQLite:
	case data.BackendGitHub:
		if c.Storage.GitHub.Repo == "" {
			return &ConfigError{Field: "GITHUB_REPO", Message: "required for the github backend"}
		}
		if c.Storage.GitHub.Token == "" {
			return &ConfigError{Field: "GITHUB_TOKEN", Message: "required for the github backend"}
		}
	default:
		return &ConfigError{Field: "NAMES_BACKEND", Message: "must be sqlite or github"}
	}
	if c.Naming.MaxLabelLength <= len([]rune(domain.LabelSeparator)) {
		return &ConfigError{Field: "MAX_LABEL_LENGTH", Message: "too small"}
	}
	if c.Storage.ConflictRetryLimit < 1 {
		return &ConfigError{Field: "CONFLICT_RETRY_LIMIT", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

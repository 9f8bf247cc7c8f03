package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for larkmcp.
type Config struct {
	General GeneralConfig `json:"general"`
	Lark    LarkConfig    `json:"lark"`
	OSS     OSSConfig     `json:"oss"`
	Server  ServerConfig  `json:"server"`
	Audit   AuditConfig   `json:"audit"`
	Events  EventsConfig  `json:"events"`
	Metrics MetricsConfig `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`         // "text" | "json"
	LogFile   string `json:"logFile,omitempty"` // optional log file path
}

// LarkConfig holds the bot credentials. When both are set the bot is initialized
// on first use, otherwise init_feishu_bot must be called.
type LarkConfig struct {
	AppID     string `json:"appId,omitempty"`
	AppSecret string `json:"appSecret,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"` // empty = Feishu open platform
}

// OSSConfig pre-initializes the storage facade when Endpoint and Bucket are set.
type OSSConfig struct {
	Endpoint        string `json:"endpoint,omitempty"`
	Bucket          string `json:"bucket,omitempty"`
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	AccessKeySecret string `json:"accessKeySecret,omitempty"`
	Region          string `json:"region,omitempty"`
	Verbose         bool   `json:"verbose"`
}

type ServerConfig struct {
	Transport string `json:"transport"` // "stdio" | "http"
	Host      string `json:"host"`
	Port      int    `json:"port"`
	APIKey    string `json:"apiKey,omitempty"`
}

type AuditConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"dbPath"`
	RetentionDays int    `json:"retentionDays"`
}

// EventsConfig configures forwarding of bus events to an AMQP topic exchange.
type EventsConfig struct {
	Enabled    bool   `json:"enabled"`
	URL        string `json:"url,omitempty"`
	Exchange   string `json:"exchange"`
	BufferSize int    `json:"bufferSize"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.larkmcp).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".larkmcp"
	}
	return filepath.Join(home, ".larkmcp")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// LoadDotEnv loads a .env file next to the config, then one in the working
// directory. Variables already set in the environment win.
func LoadDotEnv(configPath string) {
	candidates := []string{filepath.Join(filepath.Dir(ExpandPath(configPath)), ".env"), ".env"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Load reads a JSON or YAML (.yaml/.yml) config. A missing file yields the defaults.
// Environment overrides are applied after parsing.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	default:
		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))
		if isYAML(path) {
			data, err = yamlToJSON(data)
			if err != nil {
				return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
			}
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	ApplyEnv(cfg)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON re-encodes YAML as JSON so the json tags stay the single source of key names.
func yamlToJSON(data []byte) ([]byte, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

// ApplyEnv overrides credentials and endpoints from the environment.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Lark.AppID, "LARK_APP_ID")
	set(&cfg.Lark.AppSecret, "LARK_APP_SECRET")
	set(&cfg.OSS.Endpoint, "OSS_ENDPOINT")
	set(&cfg.OSS.Bucket, "OSS_BUCKET")
	set(&cfg.OSS.AccessKeyID, "OSS_ACCESS_KEY_ID")
	set(&cfg.OSS.AccessKeySecret, "OSS_ACCESS_KEY_SECRET")
	set(&cfg.Server.APIKey, "LARKMCP_API_KEY")
	set(&cfg.Events.URL, "LARKMCP_AMQP_URL")
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes cfg as JSON, or YAML when path ends in .yaml/.yml.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if isYAML(path) {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if data, err = yaml.Marshal(m); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}
	switch cfg.Server.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, "server.transport must be one of: stdio, http")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if (cfg.Lark.AppID == "") != (cfg.Lark.AppSecret == "") {
		errs = append(errs, "lark.appId and lark.appSecret must be set together")
	}
	if cfg.OSS.Endpoint != "" && cfg.OSS.Bucket == "" {
		errs = append(errs, "oss.bucket is required when oss.endpoint is set")
	}
	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath is required when audit is enabled")
	}
	if cfg.Audit.RetentionDays < 0 {
		errs = append(errs, "audit.retentionDays must be >= 0")
	}
	if cfg.Events.Enabled && cfg.Events.URL == "" {
		errs = append(errs, "events.url is required when events are enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

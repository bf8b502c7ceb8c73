package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// Config represents the user's configuration
type Config struct {
	Flow      FlowConfig      `yaml:"flow"`
	Selection SelectionConfig `yaml:"selection"`
	Publish   PublishConfig   `yaml:"publish"`
	Log       LogConfig       `yaml:"log"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// FlowConfig holds the directory connection settings. Secrets are only ever
// read from the environment.
type FlowConfig struct {
	ServerURL  string           `yaml:"server_url" validate:"required,url"`
	SiteURL    string           `yaml:"site_url,omitempty" validate:"omitempty,url"`
	AuthMethod model.AuthMethod `yaml:"auth_method" validate:"oneof=user script"`
	Login      string           `yaml:"login,omitempty"`
	ScriptName string           `yaml:"script_name,omitempty"`
	APIKey     string           `yaml:"-"`
	Timeout    time.Duration    `yaml:"timeout" validate:"gte=0"`
}

// MarshalYAML writes the timeout as a duration string
func (f FlowConfig) MarshalYAML() (interface{}, error) {
	type plain FlowConfig
	return encodeDurations(plain(f), "timeout")
}

// SelectionConfig toggles the status updates issued on selection
type SelectionConfig struct {
	SetShotInProgress bool `yaml:"set_shot_in_progress"`
	AssignTasks       bool `yaml:"assign_tasks"`
}

// PublishConfig holds publish defaults
type PublishConfig struct {
	Status string `yaml:"status" validate:"oneof=rev vwd apr"`
	Suffix string `yaml:"suffix,omitempty"`
}

// LogConfig controls the log file
type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// DevServerConfig configures the development directory server
type DevServerConfig struct {
	Addr       string        `yaml:"addr" validate:"required"`
	DBPath     string        `yaml:"db_path" validate:"required"`
	SessionTTL time.Duration `yaml:"session_ttl" validate:"gte=0"`
}

// MarshalYAML writes the session TTL as a duration string
func (d DevServerConfig) MarshalYAML() (interface{}, error) {
	type plain DevServerConfig
	return encodeDurations(plain(d), "session_ttl")
}

// encodeDurations encodes v and rewrites the named nanosecond fields as
// duration strings ("30s") so written files stay readable
func encodeDurations(v interface{}, keys ...string) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if !slices.Contains(keys, n.Content[i].Value) {
			continue
		}
		val := n.Content[i+1]
		ns, err := strconv.ParseInt(val.Value, 10, 64)
		if err != nil {
			continue
		}
		val.SetString(time.Duration(ns).String())
	}
	return &n, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Flow: FlowConfig{
			ServerURL:  flow.DefaultBaseURL,
			AuthMethod: model.AuthUser,
			Timeout:    flow.DefaultTimeout,
		},
		Selection: SelectionConfig{
			SetShotInProgress: true,
			AssignTasks:       true,
		},
		Publish: PublishConfig{
			Status: flow.PublishPendingReview,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		DevServer: DevServerConfig{
			Addr:       "127.0.0.1:8188",
			DBPath:     "vfx-flow-dev.db",
			SessionTTL: time.Hour,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

// Credentials returns the configured login fields. The password is never
// configured and must be typed.
func (c *Config) Credentials() flow.Credentials {
	return flow.Credentials{
		SiteURL:    c.Flow.SiteURL,
		AuthMethod: c.Flow.AuthMethod,
		Login:      c.Flow.Login,
		ScriptName: c.Flow.ScriptName,
		APIKey:     c.Flow.APIKey,
	}
}

// globalConfigDir returns the global config directory path (~/.vfxflow)
func globalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vfxflow"), nil
}

// GlobalPath returns the global config file path (~/.vfxflow/config.yaml)
func GlobalPath() (string, error) {
	dir, err := globalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ProjectPath returns the project-level config path (.vfxflow/config.yaml in cwd)
func ProjectPath() string {
	return filepath.Join(".vfxflow", "config.yaml")
}

// Exists checks if a config file exists (project or global)
func Exists() bool {
	if _, err := os.Stat(ProjectPath()); err == nil {
		return true
	}
	path, err := GlobalPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load loads .env, then the project config or, failing that, the global
// config, then applies environment overrides
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	path := ProjectPath()
	if _, err := os.Stat(path); err != nil {
		global, gerr := GlobalPath()
		if gerr != nil {
			return nil, gerr
		}
		path = global
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path over the defaults. A missing file is not
// an error. Environment overrides are applied before validation.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// No config exists, use defaults (don't auto-create)
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads environment files that exist. Variables already set in
// the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Flow.ServerURL = envStr("VFX_FLOW_SERVER_URL", c.Flow.ServerURL)
	c.Flow.SiteURL = envStr("FLOW_SITE_URL", c.Flow.SiteURL)
	c.Flow.AuthMethod = model.AuthMethod(envStr("FLOW_AUTH_METHOD", string(c.Flow.AuthMethod)))
	c.Flow.Login = envStr("FLOW_LOGIN", c.Flow.Login)
	c.Flow.ScriptName = envStr("FLOW_SCRIPT_NAME", c.Flow.ScriptName)
	c.Flow.APIKey = envStr("FLOW_API_KEY", c.Flow.APIKey)
	c.Flow.Timeout = envDuration("FLOW_TIMEOUT", c.Flow.Timeout)
	c.Selection.SetShotInProgress = envBool("FLOW_SET_SHOT_IN_PROGRESS", c.Selection.SetShotInProgress)
	c.Selection.AssignTasks = envBool("FLOW_ASSIGN_TASKS", c.Selection.AssignTasks)
	c.Log.Level = strings.ToLower(envStr("LOG_LEVEL", c.Log.Level))
	c.Log.File = envStr("LOG_FILE", c.Log.File)
	c.DevServer.Addr = envStr("DEVSERVER_ADDR", c.DevServer.Addr)
	c.DevServer.DBPath = envStr("DEVSERVER_DB_PATH", c.DevServer.DBPath)
}

// Save writes the config to the project location and the global location
func Save(cfg *Config) error {
	// If project save fails (e.g., no write permission), continue to global
	_ = SaveToProject(cfg)
	return SaveToGlobal(cfg)
}

// SaveToProject writes the config to .vfxflow/config.yaml
func SaveToProject(cfg *Config) error {
	return SaveTo(cfg, ProjectPath())
}

// SaveToGlobal writes the config to ~/.vfxflow/config.yaml
func SaveToGlobal(cfg *Config) error {
	path, err := GlobalPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to path. Secrets are not written.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the client settings
type Config struct {
	ServerURL     string        `mapstructure:"server_url"`
	Password      string        `mapstructure:"password"`
	DataDir       string        `mapstructure:"data_dir"`
	BroadcastDir  string        `mapstructure:"broadcast_dir"`
	LogFile       string        `mapstructure:"log_file"`
	LogLevel      string        `mapstructure:"log_level"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	MarkdownStyle string        `mapstructure:"markdown_style"`
}

// EnvPrefix is prepended to every environment override, e.g. TODOSKY_SERVER_URL
const EnvPrefix = "TODOSKY"

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		ServerURL:     "http://localhost:8080",
		DataDir:       dataDir,
		BroadcastDir:  filepath.Join(dataDir, "broadcast"),
		LogFile:       filepath.Join(dataDir, "todosky.log"),
		LogLevel:      "info",
		HTTPTimeout:   30 * time.Second,
		MarkdownStyle: "dark",
	}
}

// Load reads the config file at path, or the default location when path
// is empty, then applies TODOSKY_* environment overrides. A missing
// default file is not an error.
func Load(path string) (*Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetDefault("server_url", def.ServerURL)
	v.SetDefault("password", def.Password)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("broadcast_dir", "")
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("http_timeout", def.HTTPTimeout)
	v.SetDefault("markdown_style", def.MarkdownStyle)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = FilePath()
	}
	if _, err := os.Stat(path); err == nil || explicit {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// paths under data_dir follow it unless set on their own
	if cfg.BroadcastDir == "" {
		cfg.BroadcastDir = filepath.Join(cfg.DataDir, "broadcast")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "todosky.log")
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.ServerURL)
	switch {
	case c.ServerURL == "":
		errs = append(errs, errors.New("server_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("server_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server_url: unsupported scheme %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("server_url: missing host"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, errors.New("http_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// DataDir returns $XDG_DATA_HOME/todosky or ~/.local/share/todosky
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "todosky")
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "todosky")
}

// FilePath returns the default config file location
func FilePath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "todosky", "config.yaml")
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	xfeed "github.com/anatolykoptev/go-xfeed"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML file plus environment overrides.
type Config struct {
	APIKey       string        `yaml:"api_key"`
	Proxy        string        `yaml:"proxy"`
	ProfileIndex int           `yaml:"profile_index"`
	UserAgent    string        `yaml:"user_agent"`
	MinInterval  time.Duration `yaml:"min_interval"`
	Count        int           `yaml:"count"`

	Session struct {
		// DB selects the bbolt store; otherwise sessions are JSON files in Dir.
		DB  string        `yaml:"db"`
		Dir string        `yaml:"dir"`
		TTL time.Duration `yaml:"ttl"`
		// JarFile is an exported cookie jar read when no session is stored.
		JarFile string `yaml:"jar_file"`
	} `yaml:"session"`

	Speech struct {
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
	} `yaml:"speech"`

	Serve struct {
		Addr string `yaml:"addr"`
	} `yaml:"serve"`
}

// LoadConfig reads path. An empty path yields the zero Config.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overrides file values with API_KEY and XFEED_* variables.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv("API_KEY")); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("XFEED_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("XFEED_SESSION_DB"); v != "" {
		c.Session.DB = v
	}
	if v := os.Getenv("XFEED_MIN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("XFEED_MIN_INTERVAL: %w", err)
		}
		c.MinInterval = d
	}
	return nil
}

// OpenStore returns the configured session store and its closer.
func (c *Config) OpenStore() (xfeed.SessionStore, func() error, error) {
	if c.Session.DB != "" {
		s, err := xfeed.OpenBoltStore(expandHome(c.Session.DB))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	s := &xfeed.FileStore{Dir: expandHome(c.Session.Dir), TTL: c.Session.TTL}
	return s, func() error { return nil }, nil
}

// JarSource is the configured jar export, or nil.
func (c *Config) JarSource() xfeed.CookieSource {
	if c.Session.JarFile == "" {
		return nil
	}
	return xfeed.JarFileSource{Path: expandHome(c.Session.JarFile)}
}

// ClientConfig maps the file settings onto the library config.
func (c *Config) ClientConfig(store xfeed.SessionStore) xfeed.ClientConfig {
	return xfeed.ClientConfig{
		Proxy:        c.Proxy,
		ProfileIndex: c.ProfileIndex,
		UserAgent:    c.UserAgent,
		Count:        c.Count,
		MinInterval:  c.MinInterval,
		Resolver:     &xfeed.Resolver{Narrow: c.JarSource(), Store: store},
	}
}

func expandHome(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return p
}

// setupLogging installs the process-wide text logger.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// userError hides the raw pipeline error behind its category message.
type userError struct {
	err error
}

func (e *userError) Error() string { return xfeed.UserMessage(e.err) }
func (e *userError) Unwrap() error { return e.err }

func failure(err error) error {
	if err == nil {
		return nil
	}
	var ue *userError
	if errors.As(err, &ue) {
		return err
	}
	slog.Debug("command failed", slog.String("category", xfeed.Classify(err).String()), slog.Any("error", err))
	return &userError{err: err}
}

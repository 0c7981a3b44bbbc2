// Package config loads application configuration from environment variables
// layered over an optional JSONC config file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tailscale/hujson"

	"github.com/ericfisherdev/reviewsync/internal/application"
)

// Config holds the resolved application configuration.
type Config struct {
	GitHubToken       string
	GitHubUsername    string
	DBPath            string
	ListenAddr        string
	LocalFolder       string
	RetryAttempts     int
	RetryBase         time.Duration
	RetryMax          time.Duration
	ReconnectInterval time.Duration
	NetwatchInterval  time.Duration

	// Source is the config file that was loaded, empty if none.
	Source string
}

// HasGitHubCredentials returns true when a GitHub token is configured. The
// username is optional: it is discovered from the token when absent.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != ""
}

// RetryPolicy returns the read retry policy described by c.
func (c *Config) RetryPolicy() application.RetryPolicy {
	return application.RetryPolicy{
		Attempts: c.RetryAttempts,
		Base:     c.RetryBase,
		Max:      c.RetryMax,
	}
}

// Default returns the configuration used when neither file nor environment
// sets a value.
func Default() Config {
	retry := application.DefaultRetryPolicy()
	return Config{
		DBPath:            "reviewsync.db",
		ListenAddr:        "127.0.0.1:8787",
		RetryAttempts:     retry.Attempts,
		RetryBase:         retry.Base,
		RetryMax:          retry.Max,
		ReconnectInterval: 15 * time.Second,
		NetwatchInterval:  5 * time.Second,
	}
}

// fileConfig mirrors the JSONC config file. Durations use time.ParseDuration
// syntax. Absent keys leave the default in place.
type fileConfig struct {
	GitHubToken       *string `json:"github_token"`
	GitHubUsername    *string `json:"github_username"`
	DBPath            *string `json:"db_path"`
	ListenAddr        *string `json:"listen_addr"`
	LocalFolder       *string `json:"local_folder"`
	RetryAttempts     *int    `json:"retry_attempts"`
	RetryBase         *string `json:"retry_base"`
	RetryMax          *string `json:"retry_max"`
	ReconnectInterval *string `json:"reconnect_interval"`
	NetwatchInterval  *string `json:"netwatch_interval"`
}

// Load resolves configuration. Precedence, highest first: REVIEWSYNC_*
// environment variables, the JSONC file named by REVIEWSYNC_CONFIG, defaults.
func Load() (*Config, error) {
	cfg := Default()

	if path, ok := os.LookupEnv("REVIEWSYNC_CONFIG"); ok && path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
		cfg.Source = path
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("config %s: invalid JSONC: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fmt.Errorf("config %s: invalid JSON: %w", path, err)
	}

	setString(&cfg.GitHubToken, fc.GitHubToken)
	setString(&cfg.GitHubUsername, fc.GitHubUsername)
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.LocalFolder, fc.LocalFolder)
	if fc.RetryAttempts != nil {
		cfg.RetryAttempts = *fc.RetryAttempts
	}

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"retry_base", fc.RetryBase, &cfg.RetryBase},
		{"retry_max", fc.RetryMax, &cfg.RetryMax},
		{"reconnect_interval", fc.ReconnectInterval, &cfg.ReconnectInterval},
		{"netwatch_interval", fc.NetwatchInterval, &cfg.NetwatchInterval},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config %s: %s has invalid duration %q: %w", path, d.key, *d.src, err)
		}
		*d.dst = parsed
	}

	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("REVIEWSYNC_GITHUB_TOKEN"); ok {
		cfg.GitHubToken = v
	}
	if v, ok := os.LookupEnv("REVIEWSYNC_GITHUB_USERNAME"); ok {
		cfg.GitHubUsername = v
	}
	if v, ok := os.LookupEnv("REVIEWSYNC_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("REVIEWSYNC_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("REVIEWSYNC_LOCAL_FOLDER"); ok {
		cfg.LocalFolder = v
	}

	if v, ok := os.LookupEnv("REVIEWSYNC_RETRY_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REVIEWSYNC_RETRY_ATTEMPTS has invalid integer %q: %w", v, err)
		}
		cfg.RetryAttempts = n
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"REVIEWSYNC_RETRY_BASE", &cfg.RetryBase},
		{"REVIEWSYNC_RETRY_MAX", &cfg.RetryMax},
		{"REVIEWSYNC_RECONNECT_INTERVAL", &cfg.ReconnectInterval},
		{"REVIEWSYNC_NETWATCH_INTERVAL", &cfg.NetwatchInterval},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.env)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s has invalid duration %q: %w", d.env, v, err)
		}
		*d.dst = parsed
	}

	return nil
}

func (c *Config) validate() error {
	var errs []error
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts))
	}
	if c.RetryBase <= 0 {
		errs = append(errs, errors.New("retry base must be positive"))
	}
	if c.RetryMax < c.RetryBase {
		errs = append(errs, fmt.Errorf("retry max %s is below retry base %s", c.RetryMax, c.RetryBase))
	}
	if c.ReconnectInterval <= 0 {
		errs = append(errs, errors.New("reconnect interval must be positive"))
	}
	if c.NetwatchInterval <= 0 {
		errs = append(errs, errors.New("netwatch interval must be positive"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path must not be empty"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

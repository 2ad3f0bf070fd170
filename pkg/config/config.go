package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for mastowatch
type Config struct {
	// Account whose followers are watched and whose posts are mirrored
	Source AccountConfig `yaml:"source" json:"source" envPrefix:"SOURCE_"`

	// Account that receives mirrored posts
	Target AccountConfig `yaml:"target" json:"target" envPrefix:"TARGET_"`

	// Mail relay used for unfollower alerts
	SMTP SMTPConfig `yaml:"smtp" json:"smtp"`

	// Follower-diff settings
	Followers FollowersConfig `yaml:"followers" json:"followers" envPrefix:"MASTOWATCH_FOLLOWERS_"`

	// Mirror loop settings
	Mirror MirrorConfig `yaml:"mirror" json:"mirror" envPrefix:"MASTOWATCH_MIRROR_"`

	// Outbound request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit" envPrefix:"MASTOWATCH_"`

	// HTTP client settings
	HTTP HTTPConfig `yaml:"http" json:"http" envPrefix:"MASTOWATCH_HTTP_"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging" envPrefix:"MASTOWATCH_LOG_"`
}

// AccountConfig identifies one Mastodon account on one instance
type AccountConfig struct {
	InstanceURL string `yaml:"instance_url" json:"instance_url" env:"URL"`
	AccessToken string `yaml:"access_token" json:"access_token" env:"TOKEN"`
}

// SMTPConfig holds mail relay settings
type SMTPConfig struct {
	Server   string `yaml:"server" json:"server" env:"SMTP_SERVER"`
	Port     int    `yaml:"port" json:"port" env:"SMTP_PORT"`
	User     string `yaml:"user" json:"user" env:"SMTP_USER"`
	Password string `yaml:"password" json:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" json:"from" env:"SMTP_FROM"`
	To       string `yaml:"to" json:"to" env:"EMAIL_TO"`
	SSL      bool   `yaml:"ssl" json:"ssl" env:"SMTP_SSL"`
}

// FollowersConfig holds follower-diff settings
type FollowersConfig struct {
	SnapshotFile    string        `yaml:"snapshot_file" json:"snapshot_file" env:"FILE"`
	PageLimit       int           `yaml:"page_limit" json:"page_limit" env:"PAGE_LIMIT"`
	MaxPages        int           `yaml:"max_pages" json:"max_pages" env:"MAX_PAGES"`
	MaxRemovalRatio float64       `yaml:"max_removal_ratio" json:"max_removal_ratio" env:"MAX_REMOVAL_RATIO"`
	Subject         string        `yaml:"subject" json:"subject" env:"SUBJECT"`
	Schedule        string        `yaml:"schedule" json:"schedule" env:"SCHEDULE"`
	RunTimeout      time.Duration `yaml:"run_timeout" json:"run_timeout" env:"RUN_TIMEOUT"`
	Backup          bool          `yaml:"backup" json:"backup" env:"BACKUP"`
}

// MirrorConfig holds mirror loop settings
type MirrorConfig struct {
	WatermarkFile     string        `yaml:"watermark_file" json:"watermark_file" env:"WATERMARK_FILE"`
	FetchLimit        int           `yaml:"fetch_limit" json:"fetch_limit" env:"FETCH_LIMIT"`
	Visibility        string        `yaml:"visibility" json:"visibility" env:"VISIBILITY"`
	Sanitizer         string        `yaml:"sanitizer" json:"sanitizer" env:"SANITIZER"`
	PostDelay         time.Duration `yaml:"post_delay" json:"post_delay" env:"POST_DELAY"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown" json:"rate_limit_cooldown" env:"RATE_LIMIT_COOLDOWN"`
	CycleInterval     time.Duration `yaml:"cycle_interval" json:"cycle_interval" env:"CYCLE_INTERVAL"`
	ContinueOnFailure bool          `yaml:"continue_on_failure" json:"continue_on_failure" env:"CONTINUE_ON_FAILURE"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" env:"USER_AGENT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" env:"LEVEL"`
	File  string `yaml:"file" json:"file" env:"FILE"`
}

// legacyEnv carries the variable names used by the single-purpose unfollower script
type legacyEnv struct {
	InstanceURL string `env:"MASTODON_INSTANCE_URL"`
	AccessToken string `env:"MASTODON_ACCESS_TOKEN"`
}

var (
	validVisibilities = map[string]bool{
		"public": true, "unlisted": true, "private": true, "direct": true,
	}
	validSanitizers = map[string]bool{
		"pattern": true, "document": true,
	}
	validLogLevels = map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SMTP: SMTPConfig{
			Port: 465,
			SSL:  true,
		},
		Followers: FollowersConfig{
			SnapshotFile:    "followers.json",
			PageLimit:       80,
			MaxPages:        1000,
			MaxRemovalRatio: 0, // 0 disables the guard
			Subject:         "Mastodon Unfollower Alert",
			RunTimeout:      15 * time.Minute,
		},
		Mirror: MirrorConfig{
			WatermarkFile:     "watermark.json",
			FetchLimit:        40,
			Visibility:        "private",
			Sanitizer:         "pattern",
			PostDelay:         10 * time.Second,
			RateLimitCooldown: 5 * time.Minute,
			CycleInterval:     2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		HTTP: HTTPConfig{
			Timeout:   60 * time.Second,
			UserAgent: "mastowatch/1.0",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	var legacy legacyEnv
	if err := env.Parse(&legacy); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if c.Source.InstanceURL == "" {
		c.Source.InstanceURL = legacy.InstanceURL
	}
	if c.Source.AccessToken == "" {
		c.Source.AccessToken = legacy.AccessToken
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"mastowatch.yaml",
		"mastowatch.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "mastowatch", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "mastowatch", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks settings shared by every command
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// ValidateFollowers checks everything the follower-diff run needs
func (c *Config) ValidateFollowers() error {
	var errs []error

	errs = append(errs, validateAccount("source", c.Source)...)

	if c.SMTP.Server == "" {
		errs = append(errs, errors.New("SMTP server is required"))
	}
	if c.SMTP.User == "" {
		errs = append(errs, errors.New("SMTP user is required"))
	}
	if c.SMTP.Password == "" {
		errs = append(errs, errors.New("SMTP password is required"))
	}
	if c.SMTP.To == "" {
		errs = append(errs, errors.New("alert recipient (EMAIL_TO) is required"))
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		errs = append(errs, errors.New("SMTP port is out of range"))
	}

	if c.Followers.SnapshotFile == "" {
		errs = append(errs, errors.New("followers snapshot file is required"))
	}
	if c.Followers.PageLimit <= 0 {
		errs = append(errs, errors.New("followers page limit must be positive"))
	}
	if c.Followers.MaxPages <= 0 {
		errs = append(errs, errors.New("followers max pages must be positive"))
	}
	if c.Followers.MaxRemovalRatio < 0 || c.Followers.MaxRemovalRatio > 1 {
		errs = append(errs, errors.New("max removal ratio must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

// ValidateMirror checks everything the mirror loop needs
func (c *Config) ValidateMirror() error {
	var errs []error

	errs = append(errs, validateAccount("source", c.Source)...)
	errs = append(errs, validateAccount("target", c.Target)...)

	if c.Mirror.WatermarkFile == "" {
		errs = append(errs, errors.New("mirror watermark file is required"))
	}
	if c.Mirror.FetchLimit <= 0 {
		errs = append(errs, errors.New("mirror fetch limit must be positive"))
	}
	if !validVisibilities[c.Mirror.Visibility] {
		errs = append(errs, fmt.Errorf("invalid mirror visibility %q", c.Mirror.Visibility))
	}
	if !validSanitizers[c.Mirror.Sanitizer] {
		errs = append(errs, fmt.Errorf("invalid mirror sanitizer %q", c.Mirror.Sanitizer))
	}
	if c.Mirror.PostDelay < 0 || c.Mirror.RateLimitCooldown < 0 || c.Mirror.CycleInterval < 0 {
		errs = append(errs, errors.New("mirror delays cannot be negative"))
	}

	return errors.Join(errs...)
}

func validateAccount(name string, account AccountConfig) []error {
	var errs []error

	if account.InstanceURL == "" {
		errs = append(errs, fmt.Errorf("%s instance URL is required", name))
	} else if u, err := url.Parse(account.InstanceURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s instance URL %q is not absolute", name, account.InstanceURL))
	}
	if account.AccessToken == "" {
		errs = append(errs, fmt.Errorf("%s access token is required", name))
	}

	return errs
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Masked returns a copy with secrets replaced, for display
func (c *Config) Masked() *Config {
	masked := *c
	masked.Source.AccessToken = mask(c.Source.AccessToken)
	masked.Target.AccessToken = mask(c.Target.AccessToken)
	masked.SMTP.Password = mask(c.SMTP.Password)
	return &masked
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
	if file, ok := flags["log-file"].(string); ok && file != "" {
		c.Logging.File = file
	}
	if snapshot, ok := flags["followers-file"].(string); ok && snapshot != "" {
		c.Followers.SnapshotFile = snapshot
	}
	if schedule, ok := flags["schedule"].(string); ok && schedule != "" {
		c.Followers.Schedule = schedule
	}
	if watermark, ok := flags["watermark-file"].(string); ok && watermark != "" {
		c.Mirror.WatermarkFile = watermark
	}
	if visibility, ok := flags["visibility"].(string); ok && visibility != "" {
		c.Mirror.Visibility = visibility
	}
	if backup, ok := flags["backup"].(bool); ok {
		c.Followers.Backup = backup
	}
	if cont, ok := flags["continue-on-failure"].(bool); ok {
		c.Mirror.ContinueOnFailure = cont
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".config", "mastowatch", ".env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the engagement bot
type Config struct {
	// Instagram credentials
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Per-category daily action ceilings
	Limits LimitsConfig `yaml:"limits" json:"limits"`

	// Inter-action delay configuration
	Delays DelaysConfig `yaml:"delays" json:"delays"`

	// Engagement behaviour tuning
	Engagement EngagementConfig `yaml:"engagement" json:"engagement"`

	// Targeting settings
	Targeting TargetingConfig `yaml:"targeting" json:"targeting"`

	// HTTP request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Activity reporting
	Report ReportConfig `yaml:"report" json:"report"`

	// Cross-run session state
	Session SessionConfig `yaml:"session" json:"session"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	Username  string `yaml:"username" json:"username"`
	SessionID string `yaml:"session_id" json:"session_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// LimitsConfig holds the per-category daily action ceilings
type LimitsConfig struct {
	Like     int `yaml:"like" json:"like"`
	Follow   int `yaml:"follow" json:"follow"`
	Unfollow int `yaml:"unfollow" json:"unfollow"`
	Comment  int `yaml:"comment" json:"comment"`
}

// DelaysConfig holds inter-action delay bounds
type DelaysConfig struct {
	Min       time.Duration `yaml:"min" json:"min"`
	Max       time.Duration `yaml:"max" json:"max"`
	PerAction time.Duration `yaml:"per_action" json:"per_action"`
}

// yamlDuration lets YAML carry durations as strings ("15s", "2m") while the
// rest of the code works with plain time.Duration.
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return err
		}
		*d = yamlDuration(n)
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = yamlDuration(parsed)
	return nil
}

func (d yamlDuration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type rawDelaysConfig struct {
	Min       yamlDuration `yaml:"min"`
	Max       yamlDuration `yaml:"max"`
	PerAction yamlDuration `yaml:"per_action"`
}

func (c *DelaysConfig) UnmarshalYAML(node *yaml.Node) error {
	// Absent keys keep their current values
	raw := rawDelaysConfig{
		Min:       yamlDuration(c.Min),
		Max:       yamlDuration(c.Max),
		PerAction: yamlDuration(c.PerAction),
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.Min = time.Duration(raw.Min)
	c.Max = time.Duration(raw.Max)
	c.PerAction = time.Duration(raw.PerAction)
	return nil
}

func (c DelaysConfig) MarshalYAML() (interface{}, error) {
	return rawDelaysConfig{
		Min:       yamlDuration(c.Min),
		Max:       yamlDuration(c.Max),
		PerAction: yamlDuration(c.PerAction),
	}, nil
}

// EngagementConfig tunes session behaviour
type EngagementConfig struct {
	LikeProbability    float64  `yaml:"like_probability" json:"like_probability"`
	FollowProbability  float64  `yaml:"follow_probability" json:"follow_probability"`
	CommentProbability float64  `yaml:"comment_probability" json:"comment_probability"`
	CommentsEnabled    bool     `yaml:"comments_enabled" json:"comments_enabled"`
	CommentTemplates   []string `yaml:"comment_templates" json:"comment_templates"`
}

// TargetingConfig holds the hashtags to work through and per-tag caps
type TargetingConfig struct {
	Hashtags          []string `yaml:"hashtags" json:"hashtags"`
	MaxLikesPerTag    int      `yaml:"max_likes_per_tag" json:"max_likes_per_tag"`
	MaxFollowsPerTag  int      `yaml:"max_follows_per_tag" json:"max_follows_per_tag"`
	MaxCommentsPerTag int      `yaml:"max_comments_per_tag" json:"max_comments_per_tag"`
}

// RateLimitConfig holds HTTP request pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

type rawRateLimitConfig struct {
	RequestsPerMinute int          `yaml:"requests_per_minute"`
	MaxRetries        int          `yaml:"max_retries"`
	RetryDelay        yamlDuration `yaml:"retry_delay"`
}

func (c *RateLimitConfig) UnmarshalYAML(node *yaml.Node) error {
	raw := rawRateLimitConfig{
		RequestsPerMinute: c.RequestsPerMinute,
		MaxRetries:        c.MaxRetries,
		RetryDelay:        yamlDuration(c.RetryDelay),
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.RequestsPerMinute = raw.RequestsPerMinute
	c.MaxRetries = raw.MaxRetries
	c.RetryDelay = time.Duration(raw.RetryDelay)
	return nil
}

func (c RateLimitConfig) MarshalYAML() (interface{}, error) {
	return rawRateLimitConfig{
		RequestsPerMinute: c.RequestsPerMinute,
		MaxRetries:        c.MaxRetries,
		RetryDelay:        yamlDuration(c.RetryDelay),
	}, nil
}

// ReportConfig holds activity reporting configuration
type ReportConfig struct {
	Directory   string `yaml:"directory" json:"directory"`
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
}

// SessionConfig holds cross-run state configuration
type SessionConfig struct {
	Persist        bool   `yaml:"persist" json:"persist"`
	StateDirectory string `yaml:"state_directory" json:"state_directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		},
		Limits: LimitsConfig{
			Like:     100,
			Follow:   30,
			Unfollow: 30,
			Comment:  15,
		},
		Delays: DelaysConfig{
			Min:       15 * time.Second,
			Max:       45 * time.Second,
			PerAction: 0,
		},
		Engagement: EngagementConfig{
			LikeProbability:    0.9,
			FollowProbability:  0.5,
			CommentProbability: 0.3,
			CommentsEnabled:    false,
			CommentTemplates: []string{
				"Great shot!",
				"Love this",
				"Amazing content",
			},
		},
		Targeting: TargetingConfig{
			Hashtags:          nil,
			MaxLikesPerTag:    20,
			MaxFollowsPerTag:  10,
			MaxCommentsPerTag: 5,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Report: ReportConfig{
			Directory: "./reports",
		},
		Session: SessionConfig{
			Persist:        true,
			StateDirectory: "",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if username := os.Getenv("IGENGAGE_USERNAME"); username != "" {
		c.Instagram.Username = username
	}
	if sessionID := os.Getenv("IGENGAGE_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken := os.Getenv("IGENGAGE_CSRF_TOKEN"); csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if userAgent := os.Getenv("IGENGAGE_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}

	if rpm := os.Getenv("IGENGAGE_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if likes := os.Getenv("IGENGAGE_DAILY_LIKES"); likes != "" {
		var val int
		fmt.Sscanf(likes, "%d", &val)
		if val >= 0 {
			c.Limits.Like = val
		}
	}
	if follows := os.Getenv("IGENGAGE_DAILY_FOLLOWS"); follows != "" {
		var val int
		fmt.Sscanf(follows, "%d", &val)
		if val >= 0 {
			c.Limits.Follow = val
		}
	}
	if comments := os.Getenv("IGENGAGE_DAILY_COMMENTS"); comments != "" {
		var val int
		fmt.Sscanf(comments, "%d", &val)
		if val >= 0 {
			c.Limits.Comment = val
		}
	}

	if tags := os.Getenv("IGENGAGE_HASHTAGS"); tags != "" {
		parts := strings.Split(tags, ",")
		c.Targeting.Hashtags = c.Targeting.Hashtags[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				c.Targeting.Hashtags = append(c.Targeting.Hashtags, p)
			}
		}
	}

	if reportDir := os.Getenv("IGENGAGE_REPORT_DIR"); reportDir != "" {
		c.Report.Directory = reportDir
	}
	if dsn := os.Getenv("IGENGAGE_POSTGRES_DSN"); dsn != "" {
		c.Report.PostgresDSN = dsn
	}

	if logLevel := os.Getenv("IGENGAGE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
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
	// Check in order of precedence
	locations := []string{
		".igengage.yaml",
		".igengage.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igengage", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igengage", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igengage.yaml"),
		filepath.Join(os.Getenv("HOME"), ".igengage.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are checked
// separately by ValidateCredentials, after stored accounts have had a chance
// to fill them in.
func (c *Config) Validate() error {
	var errs []error

	if c.Limits.Like < 0 || c.Limits.Follow < 0 || c.Limits.Unfollow < 0 || c.Limits.Comment < 0 {
		errs = append(errs, errors.New("action limits cannot be negative"))
	}

	if c.Delays.Min < 0 {
		errs = append(errs, errors.New("minimum delay cannot be negative"))
	}
	if c.Delays.Max < c.Delays.Min {
		errs = append(errs, errors.New("maximum delay must not be less than minimum delay"))
	}

	for _, p := range []float64{
		c.Engagement.LikeProbability,
		c.Engagement.FollowProbability,
		c.Engagement.CommentProbability,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, errors.New("engagement probabilities must be between 0 and 1"))
			break
		}
	}
	if c.Engagement.CommentsEnabled && len(c.Engagement.CommentTemplates) == 0 {
		errs = append(errs, errors.New("comment templates are required when comments are enabled"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Report.Directory == "" && c.Report.PostgresDSN == "" {
		errs = append(errs, errors.New("a report directory or postgres DSN is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials checks that Instagram credentials are present. Callers
// resolve stored accounts first and run this as the final check.
func (c *Config) ValidateCredentials() error {
	var errs []error

	if c.Instagram.SessionID == "" {
		errs = append(errs, errors.New("Instagram session ID is required"))
	}
	if c.Instagram.CSRFToken == "" {
		errs = append(errs, errors.New("Instagram CSRF token is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
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

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if sessionID, ok := flags["session-id"].(string); ok && sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken, ok := flags["csrf-token"].(string); ok && csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if hashtags, ok := flags["hashtags"].([]string); ok && len(hashtags) > 0 {
		c.Targeting.Hashtags = hashtags
	}
	if reportDir, ok := flags["report-dir"].(string); ok && reportDir != "" {
		c.Report.Directory = reportDir
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igengage.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

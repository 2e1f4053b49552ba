package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/net/publicsuffix"

	"github.com/bcdannyboy/EmailHunter/internal/patterns"
)

// EnvPrefix prefixes every environment override, e.g. EMAILHUNTER_DOMAIN.
const EnvPrefix = "EMAILHUNTER"

// Config holds every knob of a harvest run.
type Config struct {
	Domain string `mapstructure:"domain" json:"domain"`
	// Regex filters local parts into the exact mapping (full match).
	Regex string `mapstructure:"regex" json:"regex"`
	// EmailRegex is an optional broad extraction pattern added to the
	// built-in obfuscation patterns.
	EmailRegex string `mapstructure:"email_regex" json:"email_regex"`

	Backends    []string `mapstructure:"backends" json:"backends"`
	GitHubToken string   `mapstructure:"github_token" json:"github_token"`
	SerpAPIKey  string   `mapstructure:"serpapi_key" json:"serpapi_key"`
	DorksFile   string   `mapstructure:"dorks_file" json:"dorks_file"`

	MaxResults        int `mapstructure:"max_results" json:"max_results"`
	MaxPages          int `mapstructure:"max_pages" json:"max_pages"`
	SearchesPerMinute int `mapstructure:"searches_per_minute" json:"searches_per_minute"`

	// FetchWorkers of 0 sizes the pool from the host.
	FetchWorkers int           `mapstructure:"fetch_workers" json:"fetch_workers"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" json:"fetch_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" json:"max_body_bytes"`
	UserAgent    string        `mapstructure:"user_agent" json:"user_agent"`
	SpeedTest    bool          `mapstructure:"speed_test" json:"speed_test"`

	OutputDir          string        `mapstructure:"output_dir" json:"output_dir"`
	OutputPrefix       string        `mapstructure:"output_prefix" json:"output_prefix"`
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval" json:"checkpoint_interval"`
	JSONReport         bool          `mapstructure:"json_report" json:"json_report"`
	DOCXReport         bool          `mapstructure:"docx_report" json:"docx_report"`

	RedisURL     string        `mapstructure:"redis_url" json:"redis_url"`
	RedisTTL     time.Duration `mapstructure:"redis_ttl" json:"redis_ttl"`
	ResumeRun    string        `mapstructure:"resume_run" json:"resume_run"`
	PostgresDSN  string        `mapstructure:"postgres_dsn" json:"postgres_dsn"`
	KafkaBrokers []string      `mapstructure:"kafka_brokers" json:"kafka_brokers"`
	KafkaTopic   string        `mapstructure:"kafka_topic" json:"kafka_topic"`

	MetricsAddr string `mapstructure:"metrics_addr" json:"metrics_addr"`
	LogLevel    string `mapstructure:"log_level" json:"log_level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Backends:           []string{"github"},
		MaxResults:         100,
		SearchesPerMinute:  30,
		FetchTimeout:       30 * time.Second,
		MaxBodyBytes:       32 << 20,
		OutputDir:          ".",
		CheckpointInterval: 30 * time.Second,
		RedisTTL:           7 * 24 * time.Hour,
		KafkaTopic:         "emailhunter.findings",
		LogLevel:           "info",
	}
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"domain":       "domain",
	"regex":        "regex",
	"email-regex":  "email_regex",
	"backends":     "backends",
	"max-results":  "max_results",
	"max-pages":    "max_pages",
	"spm":          "searches_per_minute",
	"workers":      "fetch_workers",
	"timeout":      "fetch_timeout",
	"dorks":        "dorks_file",
	"output":       "output_dir",
	"prefix":       "output_prefix",
	"checkpoint":   "checkpoint_interval",
	"json":         "json_report",
	"docx":         "docx_report",
	"redis":        "redis_url",
	"resume":       "resume_run",
	"postgres":     "postgres_dsn",
	"kafka":        "kafka_brokers",
	"kafka-topic":  "kafka_topic",
	"metrics-addr": "metrics_addr",
	"log-level":    "log_level",
	"speed-test":   "speed_test",
	"user-agent":   "user_agent",
}

// Load merges, lowest precedence first: defaults, a .env file in the working
// directory, the config file at path (YAML or JSON, optional), EMAILHUNTER_*
// environment variables and flags the user set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Backends = splitList(cfg.Backends)
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("domain", d.Domain)
	v.SetDefault("regex", d.Regex)
	v.SetDefault("email_regex", d.EmailRegex)
	v.SetDefault("backends", d.Backends)
	v.SetDefault("github_token", d.GitHubToken)
	v.SetDefault("serpapi_key", d.SerpAPIKey)
	v.SetDefault("dorks_file", d.DorksFile)
	v.SetDefault("max_results", d.MaxResults)
	v.SetDefault("max_pages", d.MaxPages)
	v.SetDefault("searches_per_minute", d.SearchesPerMinute)
	v.SetDefault("fetch_workers", d.FetchWorkers)
	v.SetDefault("fetch_timeout", d.FetchTimeout)
	v.SetDefault("max_body_bytes", d.MaxBodyBytes)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("speed_test", d.SpeedTest)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("output_prefix", d.OutputPrefix)
	v.SetDefault("checkpoint_interval", d.CheckpointInterval)
	v.SetDefault("json_report", d.JSONReport)
	v.SetDefault("docx_report", d.DOCXReport)
	v.SetDefault("redis_url", d.RedisURL)
	v.SetDefault("redis_ttl", d.RedisTTL)
	v.SetDefault("resume_run", d.ResumeRun)
	v.SetDefault("postgres_dsn", d.PostgresDSN)
	v.SetDefault("kafka_brokers", d.KafkaBrokers)
	v.SetDefault("kafka_topic", d.KafkaTopic)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log_level", d.LogLevel)
}

// splitList accepts both repeated values and comma separated ones.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var domainRe = regexp.MustCompile(`^(?i)[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+$`)

// Validate checks bounds and compiles the patterns so that bad input fails
// before any network activity.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Domain) == "" {
		return fmt.Errorf("domain cannot be empty: %w", patterns.ErrEmptyDomain)
	}
	if !domainRe.MatchString(c.Domain) {
		return fmt.Errorf("domain %q is not a valid host name", c.Domain)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(c.Domain); err != nil {
		return fmt.Errorf("domain %q is a public suffix, not a registrable domain", c.Domain)
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	if c.SearchesPerMinute < 1 {
		return fmt.Errorf("searches_per_minute must be >= 1, got %d", c.SearchesPerMinute)
	}
	if c.SearchesPerMinute > 600 {
		return fmt.Errorf("searches_per_minute too high (max 600), got %d", c.SearchesPerMinute)
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must be >= 0, got %d", c.MaxResults)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must be >= 0, got %d", c.MaxPages)
	}
	if c.FetchWorkers < 0 {
		return fmt.Errorf("fetch_workers must be >= 0, got %d", c.FetchWorkers)
	}
	if c.FetchWorkers > 1000 {
		return fmt.Errorf("fetch_workers too high (max 1000), got %d", c.FetchWorkers)
	}
	if c.FetchTimeout < time.Second {
		return fmt.Errorf("fetch_timeout must be >= 1s, got %s", c.FetchTimeout)
	}
	if c.FetchTimeout > 5*time.Minute {
		return fmt.Errorf("fetch_timeout too high (max 5m), got %s", c.FetchTimeout)
	}
	if c.MaxBodyBytes < 1 {
		return fmt.Errorf("max_body_bytes must be >= 1, got %d", c.MaxBodyBytes)
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint_interval must be >= 0, got %s", c.CheckpointInterval)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("kafka_topic cannot be empty when kafka_brokers is set")
	}
	if c.ResumeRun != "" && c.RedisURL == "" {
		return fmt.Errorf("resume_run requires redis_url")
	}
	if _, err := patterns.CompileUser(c.Regex); err != nil {
		return err
	}
	if c.EmailRegex != "" {
		if _, err := regexp.Compile(c.EmailRegex); err != nil {
			return fmt.Errorf("%w: email pattern %q: %v", patterns.ErrInvalidPattern, c.EmailRegex, err)
		}
	}
	return nil
}

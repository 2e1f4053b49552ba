package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/EmailHunter/internal/patterns"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("domain", "d", "", "")
	fs.StringP("regex", "r", "", "")
	fs.StringSliceP("backends", "b", nil, "")
	fs.IntP("max-results", "m", 100, "")
	fs.Int("spm", 30, "")
	fs.Int("workers", 0, "")
	fs.Duration("timeout", 30*time.Second, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"github"}, cfg.Backends)
	assert.Equal(t, 100, cfg.MaxResults)
	assert.Equal(t, 30, cfg.SearchesPerMinute)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "hunter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"domain: file.example\nmax_results: 5\nsearches_per_minute: 10\nfetch_timeout: 10s\nbackends: [bing]\n",
	), 0o600))

	t.Setenv("EMAILHUNTER_MAX_RESULTS", "7")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"-d", "acme.co", "--spm", "12", "-b", "serpapi,bing"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "acme.co", cfg.Domain, "flag beats file")
	assert.Equal(t, 7, cfg.MaxResults, "env beats file")
	assert.Equal(t, 12, cfg.SearchesPerMinute)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout, "file beats default")
	assert.Equal(t, []string{"serpapi", "bing"}, cfg.Backends)
}

func TestLoadUnsetFlagsKeepLowerLayers(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EMAILHUNTER_DOMAIN", "env.example")

	fs := testFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "env.example", cfg.Domain)
	assert.Equal(t, 30, cfg.SearchesPerMinute)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EMAILHUNTER_GITHUB_TOKEN=ghp_test\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("EMAILHUNTER_GITHUB_TOKEN") })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "ghp_test", cfg.GitHubToken)
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("does-not-exist.yaml", nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Domain = "acme.co"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"empty domain", func(c *Config) { c.Domain = " " }, "domain cannot be empty"},
		{"bad domain", func(c *Config) { c.Domain = "not a host" }, "not a valid host name"},
		{"public suffix", func(c *Config) { c.Domain = "co.uk" }, "is a public suffix"},
		{"subdomain", func(c *Config) { c.Domain = "mail.acme.co.uk" }, ""},
		{"unlisted tld", func(c *Config) { c.Domain = "a.b" }, ""},
		{"no backends", func(c *Config) { c.Backends = nil }, "at least one backend"},
		{"zero spm", func(c *Config) { c.SearchesPerMinute = 0 }, "searches_per_minute must be >= 1"},
		{"huge spm", func(c *Config) { c.SearchesPerMinute = 601 }, "too high"},
		{"negative results", func(c *Config) { c.MaxResults = -1 }, "max_results must be >= 0"},
		{"negative workers", func(c *Config) { c.FetchWorkers = -1 }, "fetch_workers must be >= 0"},
		{"short timeout", func(c *Config) { c.FetchTimeout = time.Millisecond }, "fetch_timeout must be >= 1s"},
		{"resume without redis", func(c *Config) { c.ResumeRun = "abc" }, "requires redis_url"},
		{"bad user pattern", func(c *Config) { c.Regex = "(" }, "invalid pattern"},
		{"bad email pattern", func(c *Config) { c.EmailRegex = "[" }, "invalid pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateWrapsPatternErrors(t *testing.T) {
	c := Default()
	c.Domain = "acme.co"
	c.Regex = "a(b"
	assert.ErrorIs(t, c.Validate(), patterns.ErrInvalidPattern)

	c = Default()
	assert.ErrorIs(t, c.Validate(), patterns.ErrEmptyDomain)
}

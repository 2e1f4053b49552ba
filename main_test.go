package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/EmailHunter/internal/config"
	"github.com/bcdannyboy/EmailHunter/internal/dorks"
)

func TestOutputPrefix(t *testing.T) {
	tests := []struct {
		backends []string
		prefix   string
		want     string
	}{
		{[]string{"github"}, "", "git"},
		{[]string{"github-code", "github-repos"}, "", "git"},
		{[]string{"serpapi"}, "", "google"},
		{[]string{"google"}, "", "google"},
		{[]string{"bing"}, "", "bing"},
		{[]string{"github", "bing"}, "", "git_bing"},
		{[]string{"github"}, "custom", "custom"},
		{nil, "", "emailhunter"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.backends, ",")+"/"+tt.want, func(t *testing.T) {
			cfg := config.Default()
			cfg.Backends = tt.backends
			cfg.OutputPrefix = tt.prefix
			assert.Equal(t, tt.want, outputPrefix(&cfg))
		})
	}
}

func TestApplyKey(t *testing.T) {
	cfg := config.Default()
	cfg.Backends = []string{"github-code"}
	applyKey(&cfg, "ghp_x")
	assert.Equal(t, "ghp_x", cfg.GitHubToken)
	assert.Empty(t, cfg.SerpAPIKey)

	cfg = config.Default()
	cfg.Backends = []string{"serpapi", "bing"}
	applyKey(&cfg, "serp")
	assert.Equal(t, "serp", cfg.SerpAPIKey)
	assert.Empty(t, cfg.GitHubToken)

	cfg = config.Default()
	cfg.GitHubToken = "from-env"
	applyKey(&cfg, "")
	assert.Equal(t, "from-env", cfg.GitHubToken)
}

func TestBuildQueries(t *testing.T) {
	cfg := config.Default()
	cfg.Domain = "acme.co"

	queries, err := buildQueries(&cfg, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"@acme.co"}, queries)

	queries, err = buildQueries(&cfg, false)
	require.NoError(t, err)
	assert.Len(t, queries, len(dorks.Default))
	assert.Equal(t, `inurl:"@acme.co"`, queries[0])

	path := filepath.Join(t.TempDir(), "dorks.txt")
	require.NoError(t, os.WriteFile(path, []byte("# mine\n\"@example.com\" resume\n"), 0o600))
	cfg.DorksFile = path
	queries, err = buildQueries(&cfg, true)
	require.NoError(t, err)
	assert.Equal(t, []string{`"@acme.co" resume`}, queries)
}

func TestParentDomain(t *testing.T) {
	tests := []struct {
		domain string
		parent string
		sub    bool
	}{
		{"acme.co", "acme.co", false},
		{"ACME.co", "acme.co", false},
		{"mail.acme.co.uk", "acme.co.uk", true},
		{"acme.co.uk", "acme.co.uk", false},
		{"eu.mail.acme.io", "acme.io", true},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			parent, sub := parentDomain(tt.domain)
			assert.Equal(t, tt.sub, sub)
			assert.True(t, strings.EqualFold(tt.parent, parent))
		})
	}
}

func TestDorksCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"dorks", "-d", "acme.co", "-b", "github"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "@acme.co\n", out.String())
}

func TestDorksCommandRequiresDomain(t *testing.T) {
	t.Setenv("EMAILHUNTER_DOMAIN", "")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"dorks"})
	assert.Error(t, cmd.Execute())
}

func TestRunRejectsBadPattern(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "-d", "acme.co", "-r", "(", "-o", t.TempDir()})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "EmailHunter v"+version+"\n", out.String())
}

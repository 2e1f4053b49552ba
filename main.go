/*
 * EmailHunter v1.0
 *
 * Harvests the email addresses of one domain from search engine results
 * and GitHub. Search queries are rate limited, candidate documents are
 * fetched in parallel and scanned with obfuscation tolerant patterns.
 */

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bcdannyboy/EmailHunter/internal/config"
	"github.com/bcdannyboy/EmailHunter/internal/dorks"
	"github.com/bcdannyboy/EmailHunter/internal/search"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgHiRed).Fprintf(color.Error, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "emailhunter",
		Short:         "Harvest the email addresses of a domain from search results",
		Long:          helpText,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newDorksCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		key        string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search, fetch and extract emails for a domain",
		Example: `  emailhunter run -d acme.co
  emailhunter run -d acme.co -r 'jane\..*' -b serpapi -k $SERPAPI_KEY
  emailhunter run -d acme.co -b github -k $GITHUB_TOKEN --spm 10 --workers 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			applyKey(cfg, key)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "configuration file (YAML or JSON)")
	flags.StringVarP(&key, "key", "k", "", "API key or token for the selected backends")
	addTargetFlags(flags)
	flags.StringP("regex", "r", "", "local part pattern for the exact list (full match)")
	flags.String("email-regex", "", "additional extraction pattern")
	flags.IntP("max-results", "m", 100, "max candidates per query and backend, 0 for no limit")
	flags.Int("max-pages", 0, "max result pages per query and backend, 0 until exhausted")
	flags.Int("spm", 30, "searches per minute")
	flags.Int("workers", 0, "fetch workers, 0 sizes the pool from the host")
	flags.Duration("timeout", config.Default().FetchTimeout, "per candidate fetch timeout")
	flags.StringP("output", "o", ".", "output directory")
	flags.String("prefix", "", "output file prefix (default from the backends)")
	flags.Duration("checkpoint", config.Default().CheckpointInterval, "interval between CSV checkpoints, 0 disables")
	flags.Bool("json", false, "also write a JSON report")
	flags.Bool("docx", false, "also write a DOCX report")
	flags.String("redis", "", "redis URL mirroring results")
	flags.String("resume", "", "run id to resume from the redis mirror")
	flags.String("postgres", "", "postgres DSN receiving the findings")
	flags.StringSlice("kafka", nil, "kafka seed brokers receiving the findings")
	flags.String("kafka-topic", config.Default().KafkaTopic, "kafka topic")
	flags.String("metrics-addr", "", "serve /metrics and /healthz on this address")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.Bool("speed-test", false, "measure the network when sizing the pool")
	flags.String("user-agent", "", "User-Agent for fetches")
	return cmd
}

func newDorksCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "dorks",
		Short: "Print the queries a run would send",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Domain) == "" {
				return fmt.Errorf("a domain is required (-d)")
			}
			queries, err := buildQueries(cfg, usesGitHub(cfg.Backends))
			if err != nil {
				return err
			}
			for _, q := range queries {
				fmt.Fprintln(cmd.OutOrStdout(), q)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "configuration file (YAML or JSON)")
	addTargetFlags(cmd.Flags())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "EmailHunter v%s\n", version)
		},
	}
}

func addTargetFlags(flags *pflag.FlagSet) {
	flags.StringP("domain", "d", "", "target domain, e.g. acme.co")
	flags.StringSliceP("backends", "b", []string{"github"},
		"search backends: "+strings.Join(search.Names(), ", ")+", github (code and repos) or google (serpapi)")
	flags.String("dorks", "", "file with query templates, one per line, using "+dorks.Placeholder)
}

// applyKey routes -k to the credential of every selected backend that needs one.
func applyKey(cfg *config.Config, key string) {
	if key == "" {
		return
	}
	for _, b := range cfg.Backends {
		switch strings.ToLower(b) {
		case "github", search.GitHubCode, search.GitHubRepos:
			cfg.GitHubToken = key
		case search.SerpAPI, "google":
			cfg.SerpAPIKey = key
		}
	}
}

// usesGitHub is search.UsesGitHub on backend names, for commands that never
// build the backends.
func usesGitHub(names []string) bool {
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "github", search.GitHubCode, search.GitHubRepos:
			return true
		}
	}
	return false
}

// buildQueries picks the template set and fills in the domain. A dorks file
// always wins; otherwise runs touching GitHub use the GitHub set.
func buildQueries(cfg *config.Config, github bool) ([]string, error) {
	templates := dorks.Default
	if github {
		templates = dorks.GitHub
	}
	if cfg.DorksFile != "" {
		loaded, err := dorks.Load(cfg.DorksFile)
		if err != nil {
			return nil, err
		}
		templates = loaded
	}
	return dorks.Generate(templates, cfg.Domain), nil
}

// outputPrefix names the CSV files after the backend families of the run,
// e.g. "git" for GitHub, "google" for SerpAPI and "git_bing" for both.
func outputPrefix(cfg *config.Config) string {
	if cfg.OutputPrefix != "" {
		return cfg.OutputPrefix
	}
	var families []string
	seen := map[string]bool{}
	for _, b := range cfg.Backends {
		var family string
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "github", search.GitHubCode, search.GitHubRepos:
			family = "git"
		case search.SerpAPI, "google":
			family = "google"
		case search.Bing:
			family = "bing"
		default:
			continue
		}
		if !seen[family] {
			seen[family] = true
			families = append(families, family)
		}
	}
	if len(families) == 0 {
		return "emailhunter"
	}
	return strings.Join(families, "_")
}

const helpText = `EmailHunter - email harvester for a single domain

Generates search queries for the domain, sends them to the selected search
backends within a searches per minute budget, fetches every result in a
bounded worker pool and extracts addresses from HTML, PDF, DOCX, XLSX, PPTX
and plain text, including obfuscated forms such as "jane [at] acme.co".

OUTPUT:
    <dir>/<prefix>_emails.csv          every address found, with its sources
    <dir>/exact_<prefix>_emails.csv    addresses whose local part matches -r

CONFIGURATION:
    Flags override EMAILHUNTER_* environment variables (a .env file in the
    working directory is honoured), which override the --config file.

FEATURES:
    - GitHub code and repository search, Google via SerpAPI, Bing RSS
    - Obfuscation tolerant matching ([at], (at), " at ", spaced @)
    - Periodic CSV checkpoints, partial results kept on Ctrl+C
    - Optional Redis mirror with resume, Postgres and Kafka sinks
    - Prometheus metrics on --metrics-addr`

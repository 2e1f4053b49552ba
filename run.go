package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bcdannyboy/EmailHunter/internal/aggregate"
	"github.com/bcdannyboy/EmailHunter/internal/config"
	"github.com/bcdannyboy/EmailHunter/internal/extract"
	"github.com/bcdannyboy/EmailHunter/internal/fetch"
	"github.com/bcdannyboy/EmailHunter/internal/harvest"
	"github.com/bcdannyboy/EmailHunter/internal/patterns"
	"github.com/bcdannyboy/EmailHunter/internal/platform/httpserver"
	"github.com/bcdannyboy/EmailHunter/internal/platform/logger"
	"github.com/bcdannyboy/EmailHunter/internal/platform/metrics"
	"github.com/bcdannyboy/EmailHunter/internal/search"
	"github.com/bcdannyboy/EmailHunter/internal/sink"
)

// sinkTimeout bounds the final writes to external stores, which run after
// the run context may already be cancelled.
const sinkTimeout = 30 * time.Second

// run executes one harvest for a validated configuration.
func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logger.New(cfg.LogLevel)
	started := time.Now()

	// Patterns compile before anything touches the network.
	set, err := patterns.Compile(cfg.Domain)
	if err != nil {
		return err
	}
	if cfg.EmailRegex != "" {
		if err := set.WithCustom(cfg.EmailRegex); err != nil {
			return err
		}
	}
	user, err := patterns.CompileUser(cfg.Regex)
	if err != nil {
		return err
	}

	if parent, ok := parentDomain(cfg.Domain); ok {
		log.Warn("target is a subdomain, addresses at the parent domain are not matched",
			"domain", cfg.Domain, "parent", parent)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := fetch.NewClient(fetch.ClientOptions{Timeout: cfg.FetchTimeout, Logger: log})
	backends, err := search.Build(cfg.Backends, client, search.Credentials{
		GitHubToken: cfg.GitHubToken,
		SerpAPIKey:  cfg.SerpAPIKey,
	}, cfg.MaxResults)
	if err != nil {
		return err
	}
	queries, err := buildQueries(cfg, search.UsesGitHub(backends))
	if err != nil {
		return err
	}

	workers := cfg.FetchWorkers
	if workers == 0 {
		workers = TuneWorkers(ctx, cfg.SpeedTest, log)
	}

	m := metrics.New()

	runID := cfg.ResumeRun
	if runID == "" {
		runID = uuid.NewString()
	}
	log = log.With("run", runID)

	aggOpts := []aggregate.Option{aggregate.WithLogger(log)}
	var resumedAll, resumedExact aggregate.Mapping
	if cfg.RedisURL != "" {
		rdb, err := aggregate.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		mirror := aggregate.NewRedisMirror(rdb, runID, cfg.RedisTTL)
		aggOpts = append(aggOpts, aggregate.WithMirror(mirror))
		if cfg.ResumeRun != "" {
			if resumedAll, resumedExact, err = loadMirror(ctx, mirror); err != nil {
				return err
			}
			log.Info("resumed from mirror", "emails", len(resumedAll), "exact", len(resumedExact))
		}
	}
	agg := aggregate.New(aggOpts...)
	agg.Seed(resumedAll, resumedExact)

	fetcher := fetch.NewFetcher(client)
	fetcher.MaxBody = cfg.MaxBodyBytes
	if cfg.UserAgent != "" {
		fetcher.UserAgent = cfg.UserAgent
	}

	worker := harvest.NewWorker(fetcher, extract.New(), set, user,
		harvest.WithTimeout(cfg.FetchTimeout),
		harvest.WithLogger(log),
		harvest.WithMetrics(m),
	)

	var progress io.Writer
	if !color.NoColor && cfg.LogLevel != "debug" {
		progress = os.Stderr
	}
	pipe := &harvest.Pipeline{
		Dispatcher: &search.Dispatcher{
			Backends:   backends,
			Limiter:    search.NewLimiter(cfg.SearchesPerMinute),
			MaxPages:   cfg.MaxPages,
			MaxResults: cfg.MaxResults,
			Logger:     log,
			Metrics:    m,
		},
		Processor:  worker,
		Aggregator: agg,
		Workers:    workers,
		Logger:     log,
		Metrics:    m,
		Progress:   progress,
	}

	prefix := outputPrefix(cfg)
	cp := sink.NewCheckpointer(agg, cfg.OutputDir, prefix, user != nil, log)

	printBanner(cfg, runID, len(queries), len(backends), workers)

	runCtx, finish := context.WithCancel(ctx)
	defer finish()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer finish()
		return pipe.Run(gctx, queries)
	})
	g.Go(func() error {
		return cp.Run(gctx, cfg.CheckpointInterval)
	})
	if cfg.MetricsAddr != "" {
		srv := httpserver.New(cfg.MetricsAddr, httpserver.Router(m.Registry))
		g.Go(func() error {
			log.Info("metrics listening", "addr", cfg.MetricsAddr)
			return httpserver.Serve(gctx, srv)
		})
	}

	runErr := g.Wait()
	interrupted := ctx.Err() != nil
	if interrupted {
		log.Warn("interrupted, writing partial results")
		runErr = nil
	} else if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	all, exact, flushErr := cp.Flush()
	if flushErr != nil {
		log.Error("failed to write CSV output", "error", flushErr)
	}
	m.SetEmails(string(aggregate.KindAll), len(all))
	m.SetEmails(string(aggregate.KindExact), len(exact))

	report := sink.Report{
		RunID:    runID,
		Domain:   cfg.Domain,
		Pattern:  user.String(),
		Started:  started,
		Finished: time.Now(),
		Entries:  sink.Entries(all, exact),
	}
	sinkErr := writeReports(cfg, prefix, report, all, exact, log)

	allPath, exactPath := cp.Paths()
	if user == nil {
		exactPath = ""
	}
	printSummary(all, exact, allPath, exactPath, time.Since(started), interrupted)

	return errors.Join(runErr, flushErr, sinkErr)
}

// parentDomain reports the registrable domain above domain, if domain is a
// subdomain of it.
func parentDomain(domain string) (string, bool) {
	parent := fetch.RegistrableDomain(domain)
	return parent, !strings.EqualFold(parent, strings.TrimSuffix(domain, "."))
}

func loadMirror(ctx context.Context, mirror *aggregate.RedisMirror) (all, exact aggregate.Mapping, err error) {
	if all, err = mirror.Load(ctx, aggregate.KindAll); err != nil {
		return nil, nil, err
	}
	if exact, err = mirror.Load(ctx, aggregate.KindExact); err != nil {
		return nil, nil, err
	}
	return all, exact, nil
}

// writeReports runs the optional sinks. Each failure is logged and the
// remaining sinks still run.
func writeReports(cfg *config.Config, prefix string, report sink.Report, all, exact aggregate.Mapping, log *slog.Logger) error {
	var errs []error

	if cfg.JSONReport {
		path := filepath.Join(cfg.OutputDir, prefix+"_report.json")
		if err := sink.WriteJSONFile(path, report); err != nil {
			errs = append(errs, fmt.Errorf("json report: %w", err))
		} else {
			log.Info("json report written", "path", path)
		}
	}
	if cfg.DOCXReport {
		path := filepath.Join(cfg.OutputDir, prefix+"_report.docx")
		if err := sink.WriteDOCX(path, report); err != nil {
			errs = append(errs, fmt.Errorf("docx report: %w", err))
		} else {
			log.Info("docx report written", "path", path)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	if cfg.PostgresDSN != "" {
		if err := storePostgres(ctx, cfg.PostgresDSN, report.RunID, cfg.Domain, all, exact); err != nil {
			errs = append(errs, err)
		} else {
			log.Info("findings stored in postgres")
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		if err := publishKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, report.RunID, cfg.Domain, all, exact); err != nil {
			errs = append(errs, err)
		} else {
			log.Info("findings published to kafka", "topic", cfg.KafkaTopic)
		}
	}

	for _, err := range errs {
		log.Error("sink failed", "error", err)
	}
	return errors.Join(errs...)
}

func storePostgres(ctx context.Context, dsn, runID, domain string, all, exact aggregate.Mapping) error {
	s, err := sink.NewPostgresSink(ctx, dsn)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Write(ctx, runID, domain, aggregate.KindAll, all); err != nil {
		return err
	}
	return s.Write(ctx, runID, domain, aggregate.KindExact, exact)
}

func publishKafka(ctx context.Context, brokers []string, topic, runID, domain string, all, exact aggregate.Mapping) error {
	s, err := sink.NewKafkaSink(brokers, topic)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.EnsureTopic(ctx); err != nil {
		return err
	}
	if err := s.Write(ctx, runID, domain, aggregate.KindAll, all); err != nil {
		return err
	}
	return s.Write(ctx, runID, domain, aggregate.KindExact, exact)
}

func printBanner(cfg *config.Config, runID string, queries, backends, workers int) {
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintln(color.Output, "------- EmailHunter -------")
	fmt.Fprintf(color.Output, "🎯 Domain:     %s\n", cyan(cfg.Domain))
	if cfg.Regex != "" {
		fmt.Fprintf(color.Output, "🔎 Pattern:    %s\n", cyan(cfg.Regex))
	}
	fmt.Fprintf(color.Output, "🌐 Backends:   %d (%v)\n", backends, cfg.Backends)
	fmt.Fprintf(color.Output, "📝 Queries:    %d\n", queries)
	fmt.Fprintf(color.Output, "⏱  Rate:       %d searches/min\n", cfg.SearchesPerMinute)
	fmt.Fprintf(color.Output, "⚙️  Workers:    %d\n", workers)
	fmt.Fprintf(color.Output, "🆔 Run:        %s\n", runID)
	fmt.Fprintln(color.Output, "---------------------------")
}

func printSummary(all, exact aggregate.Mapping, allPath, exactPath string, elapsed time.Duration, interrupted bool) {
	green := color.New(color.FgHiGreen).SprintFunc()
	yellow := color.New(color.FgHiYellow).SprintFunc()

	fmt.Fprintln(color.Output)
	if interrupted {
		fmt.Fprintln(color.Output, yellow("⚠️  Run interrupted, partial results saved"))
	} else {
		fmt.Fprintln(color.Output, green("✅ Harvest complete"))
	}
	fmt.Fprintf(color.Output, "📧 Emails found: %s\n", green(len(all)))
	if exactPath != "" {
		fmt.Fprintf(color.Output, "🎯 Exact matches: %s\n", green(len(exact)))
	}
	fmt.Fprintf(color.Output, "💾 %s\n", allPath)
	if exactPath != "" {
		fmt.Fprintf(color.Output, "💾 %s\n", exactPath)
	}
	fmt.Fprintf(color.Output, "⏱  Elapsed: %s\n", elapsed.Round(time.Second))
}

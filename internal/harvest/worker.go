// Package harvest fetches candidate documents, scans them for addresses at
// the target domain and feeds the results to the aggregator.
package harvest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"mime"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bcdannyboy/EmailHunter/internal/aggregate"
	"github.com/bcdannyboy/EmailHunter/internal/fetch"
	"github.com/bcdannyboy/EmailHunter/internal/patterns"
	"github.com/bcdannyboy/EmailHunter/internal/platform/metrics"
	"github.com/bcdannyboy/EmailHunter/internal/search"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Fetcher downloads one document.
type Fetcher interface {
	Get(ctx context.Context, url string, h http.Header) (*fetch.Response, error)
}

// TextExtractor turns a document into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, contentType, name string) (string, error)
}

// Worker processes one candidate at a time; it is safe for concurrent use.
type Worker struct {
	fetcher   Fetcher
	extractor TextExtractor
	set       *patterns.Set
	user      *patterns.UserPattern
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type WorkerOption func(*Worker)

func WithTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) { w.timeout = d }
}

func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker builds a worker. user may be nil, in which case nothing is exact.
func NewWorker(f Fetcher, x TextExtractor, set *patterns.Set, user *patterns.UserPattern, opts ...WorkerOption) *Worker {
	w := &Worker{
		fetcher:   f,
		extractor: x,
		set:       set,
		user:      user,
		timeout:   30 * time.Second,
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/bcdannyboy/EmailHunter/internal/harvest"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process fetches c and returns the emails found in it, keyed to c.ID. Any
// failure is logged and yields two empty mappings.
func (w *Worker) Process(ctx context.Context, c search.Candidate) (all, exact aggregate.Mapping) {
	all, exact = make(aggregate.Mapping), make(aggregate.Mapping)

	ctx, span := w.tracer.Start(ctx, "harvest.process", trace.WithAttributes(
		attribute.String("candidate", c.ID),
		attribute.String("backend", c.Backend),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("candidate processing panicked", "candidate", c.ID, "panic", r)
			all, exact = make(aggregate.Mapping), make(aggregate.Mapping)
			w.metrics.ObserveFetch("error", time.Since(start).Seconds())
		}
	}()

	text, err := w.text(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.logger.Warn("candidate skipped", "candidate", c.ID, "backend", c.Backend, "error", err)
		w.metrics.ObserveFetch("error", time.Since(start).Seconds())
		return all, exact
	}

	for _, email := range w.set.FindAll(text) {
		all.Add(email, c.ID)
		if w.user.MatchEmail(email) {
			exact.Add(email, c.ID)
		}
	}
	span.SetAttributes(attribute.Int("emails", len(all)), attribute.Int("exact", len(exact)))
	w.metrics.ObserveFetch("ok", time.Since(start).Seconds())
	w.logger.Debug("candidate processed", "candidate", c.ID, "emails", len(all), "exact", len(exact))
	return all, exact
}

func (w *Worker) text(ctx context.Context, c search.Candidate) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	resp, err := w.fetcher.Get(ctx, c.ID, c.Header)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = c.ContentType
	}

	text, ok, err := apiContent(contentType, resp.Body)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if ok {
		return text, nil
	}

	text, err = w.extractor.Extract(ctx, resp.Body, contentType, c.ID)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	return text, nil
}

type apiBlob struct {
	Content  *string `json:"content"`
	Encoding string  `json:"encoding"`
}

// apiContent unwraps GitHub API content objects ({"content","encoding"}).
// ok is false when body is not such an object. A content the declared
// encoding cannot decode is an error.
func apiContent(contentType string, body []byte) (text string, ok bool, err error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	trimmed := bytes.TrimSpace(body)
	if mt != "application/json" && !(mt == "" && bytes.HasPrefix(trimmed, []byte("{"))) {
		return "", false, nil
	}

	var blob apiBlob
	if err := json.Unmarshal(trimmed, &blob); err != nil || blob.Content == nil {
		return "", false, nil
	}

	content := *blob.Content
	if blob.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return "", false, fmt.Errorf("base64 content: %w", err)
		}
		content = string(decoded)
	}
	return html.UnescapeString(content), true, nil
}

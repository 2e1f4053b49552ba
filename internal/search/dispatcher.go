package search

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/bcdannyboy/EmailHunter/internal/platform/metrics"
)

// NewLimiter returns a rate budget of spm requests per minute. The first
// request passes immediately and each later one waits out the full interval.
func NewLimiter(spm int) *rate.Limiter {
	if spm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(spm)), 1)
}

// Dispatcher sends queries to the backends one request at a time.
type Dispatcher struct {
	Backends []Backend
	Limiter  *rate.Limiter
	// MaxPages bounds pages per query and backend; 0 means until exhausted.
	MaxPages int
	// MaxResults bounds candidates per query and backend; 0 means no bound.
	MaxResults int
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
}

const tracerName = "github.com/bcdannyboy/EmailHunter/internal/search"

// Run dispatches every query in order and calls emit for each candidate not
// emitted before in this run. Backend failures are logged and end pagination
// for that backend and query only, as does a page holding nothing the backend
// has not already returned for the query. Run returns ctx.Err() when cancelled.
func (d *Dispatcher) Run(ctx context.Context, queries []string, emit func(Candidate)) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := d.Limiter
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	tracer := d.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	seen := make(map[string]struct{})
	for _, query := range queries {
		active := make([]Backend, len(d.Backends))
		copy(active, d.Backends)
		emitted := make(map[string]int, len(d.Backends))
		returned := make(map[string]map[string]struct{}, len(d.Backends))

		for page := 1; len(active) > 0; page++ {
			if d.MaxPages > 0 && page > d.MaxPages {
				break
			}

			next := active[:0]
			for _, b := range active {
				if err := limiter.Wait(ctx); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return err
				}

				res, err := d.dispatch(ctx, tracer, b, query, page)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					d.Metrics.IncrementBackendErrors(b.Name())
					logger.Warn("search failed",
						"backend", b.Name(), "query", query, "page", page, "error", err)
					continue
				}

				prior := returned[b.Name()]
				if prior == nil {
					prior = make(map[string]struct{})
					returned[b.Name()] = prior
				}
				fresh := 0
				for _, c := range res.Candidates {
					if _, ok := prior[c.ID]; ok {
						continue
					}
					prior[c.ID] = struct{}{}
					fresh++
					if d.MaxResults > 0 && emitted[b.Name()] >= d.MaxResults {
						break
					}
					emitted[b.Name()]++
					if _, dup := seen[c.ID]; dup {
						continue
					}
					seen[c.ID] = struct{}{}
					if c.Query == "" {
						c.Query = query
					}
					if c.Backend == "" {
						c.Backend = b.Name()
					}
					d.Metrics.IncrementCandidates()
					emit(c)
				}

				if fresh == 0 && res.HasNext {
					logger.Debug("page repeats earlier results, stopping",
						"backend", b.Name(), "query", query, "page", page)
					continue
				}
				if res.HasNext && (d.MaxResults <= 0 || emitted[b.Name()] < d.MaxResults) {
					next = append(next, b)
				}
			}
			active = next
		}
		logger.Debug("query done", "query", query)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, tracer trace.Tracer, b Backend, query string, page int) (*Page, error) {
	ctx, span := tracer.Start(ctx, "search.dispatch", trace.WithAttributes(
		attribute.String("backend", b.Name()),
		attribute.String("query", query),
		attribute.Int("page", page),
	))
	defer span.End()

	d.Metrics.IncrementDispatches(b.Name())
	res, err := b.Search(ctx, query, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res == nil {
		res = &Page{}
	}
	span.SetAttributes(attribute.Int("candidates", len(res.Candidates)))
	return res, nil
}

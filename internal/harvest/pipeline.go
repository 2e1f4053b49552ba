package harvest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/schollz/progressbar/v3"

	"github.com/bcdannyboy/EmailHunter/internal/aggregate"
	"github.com/bcdannyboy/EmailHunter/internal/platform/metrics"
	"github.com/bcdannyboy/EmailHunter/internal/search"
)

// Processor is the per candidate step run inside the pool.
type Processor interface {
	Process(ctx context.Context, c search.Candidate) (all, exact aggregate.Mapping)
}

// Dispatcher produces candidates.
type Dispatcher interface {
	Run(ctx context.Context, queries []string, emit func(search.Candidate)) error
}

// Pipeline connects the dispatcher to a bounded pool of processors whose
// results are merged into the aggregator.
type Pipeline struct {
	Dispatcher Dispatcher
	Processor  Processor
	Aggregator *aggregate.Aggregator
	Workers    int
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// Progress receives a spinner with the processed count; nil disables it.
	Progress io.Writer
}

// Run dispatches queries and processes every candidate. It returns after all
// submitted candidates finished, with the dispatcher's error if any. Results
// merged before a cancellation stay in the aggregator.
func (p *Pipeline) Run(ctx context.Context, queries []string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	var bar *progressbar.ProgressBar
	if p.Progress != nil {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(p.Progress),
			progressbar.OptionSetDescription("harvesting"),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(workers, func(item interface{}) {
		defer wg.Done()
		c := item.(search.Candidate)

		all, exact := p.Processor.Process(ctx, c)
		p.Aggregator.Merge(all, exact)

		allCount, exactCount := p.Aggregator.Counts()
		p.Metrics.SetEmails(string(aggregate.KindAll), allCount)
		p.Metrics.SetEmails(string(aggregate.KindExact), exactCount)
		if bar != nil {
			_ = bar.Add(1)
		}
	}, ants.WithPanicHandler(func(r interface{}) {
		logger.Error("pool worker panicked", "panic", r)
	}))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var submitErr error
	runErr := p.Dispatcher.Run(ctx, queries, func(c search.Candidate) {
		if submitErr != nil {
			return
		}
		wg.Add(1)
		if err := pool.Invoke(c); err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit candidate: %w", err)
			logger.Error("candidate not submitted", "candidate", c.ID, "error", err)
		}
	})
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	return submitErr
}

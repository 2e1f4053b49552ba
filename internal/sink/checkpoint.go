package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bcdannyboy/EmailHunter/internal/aggregate"
)

// Snapshotter yields consistent copies of the result mappings.
type Snapshotter interface {
	Snapshot() (all, exact aggregate.Mapping)
}

// Checkpointer rewrites the CSV outputs from the latest snapshot, either on a
// timer or on demand. Writes are serialised.
type Checkpointer struct {
	mu         sync.Mutex
	source     Snapshotter
	allPath    string
	exactPath  string
	writeExact bool
	logger     *slog.Logger
}

// NewCheckpointer writes <dir>/<prefix>_emails.csv and, when writeExact is
// set, <dir>/exact_<prefix>_emails.csv.
func NewCheckpointer(source Snapshotter, dir, prefix string, writeExact bool, logger *slog.Logger) *Checkpointer {
	if logger == nil {
		logger = slog.Default()
	}
	allPath, exactPath := Paths(dir, prefix)
	return &Checkpointer{
		source:     source,
		allPath:    allPath,
		exactPath:  exactPath,
		writeExact: writeExact,
		logger:     logger,
	}
}

// Flush writes the current snapshot and returns it.
func (c *Checkpointer) Flush() (all, exact aggregate.Mapping, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all, exact = c.source.Snapshot()
	if err := WriteCSVFile(c.allPath, all); err != nil {
		return all, exact, err
	}
	if c.writeExact {
		if err := WriteCSVFile(c.exactPath, exact); err != nil {
			return all, exact, err
		}
	}
	return all, exact, nil
}

// Run flushes every interval until ctx is done. Failed flushes are logged
// and retried on the next tick.
func (c *Checkpointer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			all, exact, err := c.Flush()
			if err != nil {
				c.logger.Warn("checkpoint failed", "error", err)
				continue
			}
			c.logger.Debug("checkpoint written", "emails", len(all), "exact", len(exact))
		case <-ctx.Done():
			return nil
		}
	}
}

// Paths returns the files the checkpointer writes.
func (c *Checkpointer) Paths() (all, exact string) {
	return c.allPath, c.exactPath
}

package detection

import (
	"context"
	"log/slog"
	"time"

	"github.com/transactai/fraudwatch/internal/metrics"
)

// RulesWatcher polls the rule store version counter and announces
// changes over a channel. Pollers that care about rule-set changes read
// from Changes instead of sharing a mutable flag.
type RulesWatcher struct {
	store    RuleStore
	interval time.Duration
	logger   *slog.Logger
	changes  chan int64
	stop     chan struct{}
	done     chan struct{}
}

// NewRulesWatcher creates a watcher polling at the given interval.
// Intervals below one second fall back to 15s.
func NewRulesWatcher(store RuleStore, interval time.Duration, logger *slog.Logger) *RulesWatcher {
	if interval < time.Second {
		interval = 15 * time.Second
	}
	return &RulesWatcher{
		store:    store,
		interval: interval,
		logger:   logger,
		changes:  make(chan int64, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Changes returns the channel that receives the new version counter
// after every observed rule-set change. The channel is buffered with a
// depth of one; a slow reader sees only the latest version.
func (w *RulesWatcher) Changes() <-chan int64 {
	return w.changes
}

// Start begins polling. Call Stop to terminate.
func (w *RulesWatcher) Start() {
	go w.run()
}

func (w *RulesWatcher) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.poll(-1)
	for {
		select {
		case <-ticker.C:
			last = w.poll(last)
		case <-w.stop:
			return
		}
	}
}

// poll reads the current version and publishes a change if it moved.
// Returns the version to compare against next time; a failed read keeps
// the previous baseline.
func (w *RulesWatcher) poll(last int64) int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	version, err := w.store.Version(ctx)
	if err != nil {
		w.logger.Warn("rule version poll failed", "error", err)
		return last
	}

	if version != last {
		if last >= 0 {
			w.logger.Info("rule set changed", "version", version)
		}
		if active, err := w.store.ListActive(ctx); err == nil {
			metrics.RulesActive.Set(float64(len(active)))
		}
		// Drop the stale value if nobody read it yet.
		select {
		case <-w.changes:
		default:
		}
		w.changes <- version
	}
	return version
}

// Stop terminates the watcher and waits for the poll loop to exit.
func (w *RulesWatcher) Stop() {
	close(w.stop)
	<-w.done
}

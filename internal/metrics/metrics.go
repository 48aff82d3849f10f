package metrics

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alvmarrod/site-weaver/internal/crawler"
	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/google/renameio/v2"
)

// Tracker accumulates per-step crawl statistics
type Tracker struct {
	mu        sync.Mutex
	startedAt time.Time
	mapped    int
	queued    int
	outcomes  map[crawler.Outcome]int
	fetchTime time.Duration
	fetches   int
}

// NewTracker creates a tracker whose clock starts now
func NewTracker() *Tracker {
	return &Tracker{
		startedAt: time.Now(),
		outcomes:  make(map[crawler.Outcome]int),
	}
}

// Observe folds one traversal step into the counters
func (t *Tracker) Observe(p crawler.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mapped = p.Mapped
	t.queued = p.Unmapped
	t.outcomes[p.Outcome]++

	if p.FetchDuration > 0 {
		t.fetchTime += p.FetchDuration
		t.fetches++
	}
}

// GetSnapshot returns the metrics gathered so far
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.build()
}

// build must be called with the lock held
func (t *Tracker) build() storage.Metrics {
	m := storage.Metrics{
		StartTime:        t.startedAt,
		PagesMapped:      t.mapped,
		PagesQueued:      t.queued,
		PagesStored:      t.outcomes[crawler.Stored],
		PagesDuplicate:   t.outcomes[crawler.DuplicateContent],
		PagesFailed:      t.outcomes[crawler.FetchFailed],
		SkippedDomain:    t.outcomes[crawler.RejectedDomain],
		SkippedPolicy:    t.outcomes[crawler.RejectedPolicy],
		SkippedDepth:     t.outcomes[crawler.RejectedDepth],
		SkippedVisited:   t.outcomes[crawler.RejectedVisited],
		TotalFetchTimeMs: t.fetchTime.Milliseconds(),
	}
	if t.fetches > 0 {
		m.AvgFetchTimeMs = m.TotalFetchTimeMs / int64(t.fetches)
	}
	return m
}

// WriteToFile stamps the end time and termination reason and writes the
// metrics as indented JSON, replacing path atomically
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	m := t.build()
	t.mu.Unlock()

	m.EndTime = time.Now()
	m.TerminationReason = reason

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// LogProgress formats current metrics for periodic log lines
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.build()
	return fmt.Sprintf("Pages: %d mapped, %d queued | Stored: %d, duplicate: %d, failed: %d | Skipped: %d domain, %d policy, %d depth, %d visited",
		m.PagesMapped, m.PagesQueued,
		m.PagesStored, m.PagesDuplicate, m.PagesFailed,
		m.SkippedDomain, m.SkippedPolicy, m.SkippedDepth, m.SkippedVisited)
}

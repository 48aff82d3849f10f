package storage

import "time"

// Page is the text extracted from one visited URL
type Page struct {
	URL     string
	Content string
}

// Edge records the first page on which a URL was discovered. External marks
// a child on another host; the sitemap draws such children as gold boxes.
type Edge struct {
	Parent   string
	Child    string
	External bool
}

// ExternalLink is a cross-domain link observed on a visited page
type ExternalLink struct {
	Source string
	Target string
}

// Run describes one crawl invocation persisted to the database
type Run struct {
	RunID      string
	SeedURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	Mapped     int
	Unmapped   int
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	PagesMapped       int       `json:"pages_mapped"`
	PagesQueued       int       `json:"pages_queued"`
	PagesStored       int       `json:"pages_stored"`
	PagesDuplicate    int       `json:"pages_duplicate"`
	PagesFailed       int       `json:"pages_failed"`
	SkippedDomain     int       `json:"skipped_domain"`
	SkippedPolicy     int       `json:"skipped_policy"`
	SkippedDepth      int       `json:"skipped_depth"`
	SkippedVisited    int       `json:"skipped_visited"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}

package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alvmarrod/site-weaver/internal/fetch"
	"github.com/alvmarrod/site-weaver/internal/memory"
	"github.com/sirupsen/logrus"
)

// Fetcher downloads one URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Extractor pulls plain text and raw hrefs out of fetched content
type Extractor interface {
	ExtractText(raw []byte) string
	ExtractLinks(raw []byte) []string
}

// Policy answers robots.txt questions and gates fetch frequency
type Policy interface {
	IsAllowed(rawURL string) bool
	RespectDelay(ctx context.Context) error
}

// ContentSink persists the text of every unique page
type ContentSink interface {
	Write(url, content string) error
}

// Exporter writes a description of the graph; it must overwrite its target
// wholesale on every call
type Exporter interface {
	Export(snap memory.Snapshot) error
}

// Outcome is the terminal state of one traversal step
type Outcome int

const (
	RejectedDomain Outcome = iota
	RejectedPolicy
	RejectedDepth
	RejectedVisited
	FetchFailed
	DuplicateContent
	Stored
)

func (o Outcome) String() string {
	switch o {
	case RejectedDomain:
		return "rejected_domain"
	case RejectedPolicy:
		return "rejected_policy"
	case RejectedDepth:
		return "rejected_depth"
	case RejectedVisited:
		return "rejected_visited"
	case FetchFailed:
		return "fetch_failed"
	case DuplicateContent:
		return "duplicate_content"
	case Stored:
		return "stored"
	default:
		return "unknown"
	}
}

// Progress is reported after every step
type Progress struct {
	Mapped        int
	Unmapped      int
	URL           string
	Depth         int
	Outcome       Outcome
	FetchDuration time.Duration
}

// ProgressFunc receives progress updates from the crawler
type ProgressFunc func(Progress)

// Termination reasons returned by Run
const (
	ReasonFrontierExhausted = "frontier_exhausted"
	ReasonPageBudget        = "page_budget"
	ReasonSignal            = "signal"
)

// Options bounds a crawl. Negative MaxDepth or MaxPages means unlimited.
type Options struct {
	MaxDepth    int
	MaxPages    int
	StripParams []string
	ExportEvery int
	StepPause   time.Duration
}

// Deps are the collaborators of the traversal engine
type Deps struct {
	Fetcher   Fetcher
	Extractor Extractor
	Policy    Policy
	Sink      ContentSink
	Exporter  Exporter
}

// Crawler walks one site depth-first from a seed URL
type Crawler struct {
	seed       string
	graph      *memory.SiteGraph
	deps       Deps
	opts       Options
	onProgress ProgressFunc
	log        *logrus.Entry
	exports    int
	// depth of the most recently stored page; popped entries sit one below it
	current int
}

// NewCrawler creates a crawler over graph, which must have been seeded with
// the same seed URL
func NewCrawler(seed string, graph *memory.SiteGraph, deps Deps, opts Options, onProgress ProgressFunc, log *logrus.Entry) (*Crawler, error) {
	if seed == "" {
		return nil, errors.New("seed URL is required")
	}
	if graph == nil {
		return nil, errors.New("site graph is required")
	}
	if deps.Fetcher == nil || deps.Extractor == nil || deps.Policy == nil {
		return nil, errors.New("fetcher, extractor and policy are required")
	}
	if opts.StripParams == nil {
		opts.StripParams = DefaultStripParams
	}
	if opts.ExportEvery < 1 {
		opts.ExportEvery = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Crawler{
		seed:       seed,
		graph:      graph,
		deps:       deps,
		opts:       opts,
		onProgress: onProgress,
		log:        log.WithField("seed", seed),
		current:    -1,
	}, nil
}

// Graph returns the site graph the crawler mutates
func (c *Crawler) Graph() *memory.SiteGraph {
	return c.graph
}

// Run pops URLs until the frontier is empty, the page budget is spent or ctx
// is cancelled. A final graph export happens in every case. The returned
// reason names why the loop stopped; err is non-nil only on cancellation.
//
// Every popped URL is visited one level below the last stored page, whatever
// page discovered it. The seed is visited at depth 0.
func (c *Crawler) Run(ctx context.Context) (reason string, err error) {
	defer c.export(true)

	for {
		if err := ctx.Err(); err != nil {
			return ReasonSignal, err
		}
		if !c.graph.HasPending() {
			return ReasonFrontierExhausted, nil
		}
		if c.budgetSpent() {
			return ReasonPageBudget, nil
		}

		entry, ok := c.graph.Pop()
		if !ok {
			return ReasonFrontierExhausted, nil
		}

		entry.Depth = c.current + 1

		progress, err := c.Step(ctx, entry)
		if err != nil {
			return ReasonSignal, err
		}
		if progress.Outcome == Stored {
			c.current = entry.Depth
		}

		c.export(false)
		c.report(progress)

		if c.opts.StepPause > 0 {
			select {
			case <-ctx.Done():
				return ReasonSignal, ctx.Err()
			case <-time.After(c.opts.StepPause):
			}
		}
	}
}

func (c *Crawler) budgetSpent() bool {
	return c.opts.MaxPages >= 0 && c.graph.VisitedCount() >= c.opts.MaxPages
}

// Step applies the boundary, policy, depth and visited checks to entry and,
// if all pass, fetches it, stores its content and folds its links into the
// frontier. Only cancellation is returned as an error.
func (c *Crawler) Step(ctx context.Context, entry memory.Entry) (Progress, error) {
	u := entry.URL
	progress := Progress{URL: u, Depth: entry.Depth}
	log := c.log.WithFields(logrus.Fields{"url": u, "depth": entry.Depth})

	finish := func(outcome Outcome) (Progress, error) {
		progress.Outcome = outcome
		progress.Mapped, progress.Unmapped = c.graph.Counts()
		return progress, nil
	}

	if !WithinBoundary(c.seed, u) {
		log.Debugf("Skipping %s - outside base URL %s", u, c.seed)
		c.graph.Reject(u)
		return finish(RejectedDomain)
	}

	if !c.deps.Policy.IsAllowed(u) {
		log.Debugf("Skipping %s - disallowed by robots.txt", u)
		c.graph.Reject(u)
		return finish(RejectedPolicy)
	}

	if c.opts.MaxDepth >= 0 && entry.Depth > c.opts.MaxDepth {
		log.Debugf("Skipping %s - depth %d exceeds %d", u, entry.Depth, c.opts.MaxDepth)
		c.graph.Reject(u)
		return finish(RejectedDepth)
	}

	if !c.graph.MarkVisited(u) {
		log.Debugf("Skipping %s - already visited", u)
		return finish(RejectedVisited)
	}
	log.Infof("Crawling: %s", u)
	c.export(false)

	if err := c.deps.Policy.RespectDelay(ctx); err != nil {
		return progress, fmt.Errorf("waiting for crawl delay: %w", err)
	}

	resp, err := c.deps.Fetcher.Fetch(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
		log.Warnf("Failed to fetch: %s: %v", u, err)
		return finish(FetchFailed)
	}
	progress.FetchDuration = resp.Duration

	text := c.deps.Extractor.ExtractText(resp.Body)
	if !c.graph.StoreContent(u, text) {
		log.Infof("Skipping duplicate content: %s", u)
		return finish(DuplicateContent)
	}

	if c.deps.Sink != nil {
		if err := c.deps.Sink.Write(u, text); err != nil {
			log.Errorf("Failed to persist content of %s: %v", u, err)
		}
	}

	links := c.deps.Extractor.ExtractLinks(resp.Body)
	log.Debugf("Found %d links on %s", len(links), u)
	c.foldLinks(u, entry.Depth, links)

	return finish(Stored)
}

// foldLinks normalizes each href found on base and either records it as an
// external edge or offers it to the frontier
func (c *Crawler) foldLinks(base string, depth int, links []string) {
	for _, href := range links {
		if href == "" {
			continue
		}

		link := href
		if absolute, err := Resolve(base, href); err == nil {
			link = Normalize(absolute, c.opts.StripParams)
		} else {
			c.log.Debugf("Keeping unparseable link %q on %s as is: %v", href, base, err)
		}

		switch Classify(base, link) {
		case LinkExternal:
			c.graph.AddExternalEdge(base, link)
		default:
			// Unknown is treated as internal, like a relative link. External
			// links never reach the frontier, so the edge is never external.
			c.graph.Add(base, link, depth+1, false)
		}
	}
}

// export writes the graph through the exporter. Only every ExportEvery-th
// non-final call reaches the exporter.
func (c *Crawler) export(final bool) {
	if c.deps.Exporter == nil {
		return
	}
	if !final {
		c.exports++
		if c.exports%c.opts.ExportEvery != 0 {
			return
		}
	}
	if err := c.deps.Exporter.Export(c.graph.Snapshot()); err != nil {
		c.log.Errorf("Error updating sitemap file: %v", err)
	}
}

func (c *Crawler) report(p Progress) {
	if c.onProgress != nil {
		c.onProgress(p)
	}
}

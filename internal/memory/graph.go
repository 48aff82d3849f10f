package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// SiteGraph is the mutable state of one crawl: visited set, frontier,
// discovery edges, external links and content fingerprints.
//
// All methods take the graph lock, so check-and-mark operations such as
// MarkVisited and Add are atomic even if callers fan out fetches later.
type SiteGraph struct {
	mu sync.RWMutex

	visited      map[string]bool
	visitedOrder []string
	rejected     map[string]bool
	frontier     *frontier

	parents  map[string]storage.Edge // child -> first discovered edge
	external []storage.ExternalLink

	fingerprints map[string]bool
	contents     map[string]string
	contentOrder []string

	mappedCount   int
	unmappedCount int
}

// NewSiteGraph creates a graph whose frontier holds only the seed URL
func NewSiteGraph(seedURL string) *SiteGraph {
	g := &SiteGraph{
		visited:      make(map[string]bool),
		rejected:     make(map[string]bool),
		frontier:     newFrontier(),
		parents:      make(map[string]storage.Edge),
		fingerprints: make(map[string]bool),
		contents:     make(map[string]string),
	}
	g.frontier.push(Entry{URL: seedURL, Depth: 0})
	return g
}

// Add enqueues link as discovered on parent. It refuses self-loops and URLs
// that are already visited, pending or previously rejected. The first
// parent recorded for a URL is never overwritten.
func (g *SiteGraph) Add(parent, link string, depth int, external bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if link == parent || g.visited[link] || g.frontier.contains(link) || g.rejected[link] {
		return false
	}

	g.frontier.push(Entry{URL: link, Depth: depth})
	g.unmappedCount++
	if _, exists := g.parents[link]; !exists {
		g.parents[link] = storage.Edge{Parent: parent, Child: link, External: external}
	}
	return true
}

// Pop removes the most recently added pending URL
func (g *SiteGraph) Pop() (Entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frontier.pop()
}

// HasPending reports whether the frontier is non-empty
func (g *SiteGraph) HasPending() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frontier.size() > 0
}

// Pending returns a copy of the frontier, bottom of the stack first
func (g *SiteGraph) Pending() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frontier.entries()
}

// MarkVisited adds url to the visited set. It returns false, changing
// nothing, if the URL was already visited.
func (g *SiteGraph) MarkVisited(url string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.visited[url] {
		return false
	}
	g.visited[url] = true
	g.visitedOrder = append(g.visitedOrder, url)
	g.mappedCount++
	return true
}

// IsVisited reports whether url has been fetched
func (g *SiteGraph) IsVisited(url string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.visited[url]
}

// Reject remembers a popped URL that failed a boundary, policy or depth
// check so that it is never enqueued again
func (g *SiteGraph) Reject(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rejected[url] = true
}

// VisitedCount returns the size of the visited set
func (g *SiteGraph) VisitedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.visitedOrder)
}

// AddExternalEdge records a cross-domain link; duplicates are kept
func (g *SiteGraph) AddExternalEdge(source, target string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.external = append(g.external, storage.ExternalLink{Source: source, Target: target})
}

// StoreContent saves the text of url unless an identical text was already
// stored for another page. It returns false for duplicate content.
func (g *SiteGraph) StoreContent(url, text string) bool {
	fp := Fingerprint(text)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fingerprints[fp] {
		return false
	}
	g.fingerprints[fp] = true
	if _, exists := g.contents[url]; !exists {
		g.contentOrder = append(g.contentOrder, url)
	}
	g.contents[url] = text
	return true
}

// Pages returns stored pages in storage order
func (g *SiteGraph) Pages() []storage.Page {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pages := make([]storage.Page, 0, len(g.contentOrder))
	for _, url := range g.contentOrder {
		pages = append(pages, storage.Page{URL: url, Content: g.contents[url]})
	}
	return pages
}

// Counts returns the cumulative visited and enqueued counters
func (g *SiteGraph) Counts() (mapped, unmapped int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mappedCount, g.unmappedCount
}

// Snapshot is a consistent copy of the graph for exporters
type Snapshot struct {
	Visited  []string
	Parents  map[string]storage.Edge
	External []storage.ExternalLink
}

// Snapshot copies the parts of the graph needed to render it
func (g *SiteGraph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := Snapshot{
		Visited:  make([]string, len(g.visitedOrder)),
		Parents:  make(map[string]storage.Edge, len(g.parents)),
		External: make([]storage.ExternalLink, len(g.external)),
	}
	copy(snap.Visited, g.visitedOrder)
	copy(snap.External, g.external)
	for child, edge := range g.parents {
		snap.Parents[child] = edge
	}
	return snap
}

// Fingerprint returns the duplicate-content key of a page text: a SHA-256
// digest of the text with whitespace runs collapsed
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Flush writes the edges of visited pages and all external links to storage
func (g *SiteGraph) Flush(store *storage.Storage) error {
	snap := g.Snapshot()

	startTime := time.Now()
	logrus.Info("Starting flush to database...")

	var result *multierror.Error
	edgesWritten := 0

	for _, url := range snap.Visited {
		edge, ok := snap.Parents[url]
		if !ok {
			continue
		}
		if err := store.UpsertEdge(edge); err != nil {
			logrus.Warnf("Failed to flush edge %s -> %s: %v", edge.Parent, edge.Child, err)
			result = multierror.Append(result, err)
			continue
		}
		edgesWritten++
	}

	if err := store.ReplaceExternalLinks(snap.External); err != nil {
		logrus.Warnf("Failed to flush external links: %v", err)
		result = multierror.Append(result, err)
	}

	logrus.Infof("Flush complete: %d edges, %d external links written in %v",
		edgesWritten, len(snap.External), time.Since(startTime))

	return result.ErrorOrNil()
}

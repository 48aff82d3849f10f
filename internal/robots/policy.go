// Package robots holds the crawl policy of one site: path rules per
// user-agent from robots.txt and the crawl-delay gate in front of fetches.
package robots

import (
	"bufio"
	"context"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alvmarrod/site-weaver/internal/fetch"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Wildcard is the user-agent token of the default rule group
const Wildcard = "*"

// Group is the rule set attached to one user-agent token
type Group struct {
	Agent    string
	Allow    []string
	Disallow []string
}

// match checks allow prefixes, then disallow prefixes; the first match wins
func (g *Group) match(path string) (allowed, matched bool) {
	for _, prefix := range g.Allow {
		if strings.HasPrefix(path, prefix) {
			return true, true
		}
	}
	for _, prefix := range g.Disallow {
		if strings.HasPrefix(path, prefix) {
			return false, true
		}
	}
	return false, false
}

// Fetcher retrieves the policy resource
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Policy is the parsed robots.txt of a site. Rules and delay are fixed at
// construction; only the limiter state changes afterwards.
type Policy struct {
	named    []*Group
	wildcard *Group
	delay    time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

func newPolicy(named []*Group, wildcard *Group, delay time.Duration) *Policy {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Policy{
		named:    named,
		wildcard: wildcard,
		delay:    delay,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Permissive returns a policy that allows everything with no delay
func Permissive() *Policy {
	return newPolicy(nil, nil, 0)
}

// FetchPolicy retrieves <scheme>://<host>/robots.txt for baseURL. Any
// failure or non-200 response yields the permissive policy.
func FetchPolicy(ctx context.Context, f Fetcher, baseURL string) *Policy {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		logrus.Warnf("Cannot derive robots.txt location from %q, allowing all", baseURL)
		return Permissive()
	}

	robotsURL := (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}).String()
	resp, err := f.Fetch(ctx, robotsURL)
	if err != nil {
		logrus.Infof("No usable robots.txt at %s (%v), allowing all", robotsURL, err)
		return Permissive()
	}
	if resp.StatusCode != 200 {
		logrus.Infof("robots.txt at %s returned status %d, allowing all", robotsURL, resp.StatusCode)
		return Permissive()
	}

	policy := Parse(strings.NewReader(string(resp.Body)))
	logrus.Infof("Loaded robots.txt from %s (%d groups, crawl delay %v)", robotsURL, len(policy.Groups()), policy.CrawlDelay())
	return policy
}

// Parse reads robots.txt directives top to bottom. A user-agent line opens
// a group; consecutive user-agent lines share the rules that follow them.
// Allow, disallow and crawl-delay lines before any user-agent are ignored.
// The effective delay is the largest valid crawl-delay in the file.
func Parse(r io.Reader) *Policy {
	groups := make(map[string]*Group)
	var order []string
	var current []*Group
	readingAgents := false
	delay := 0.0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		directive, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		directive = strings.ToLower(strings.TrimSpace(directive))
		value = strings.TrimSpace(value)

		if directive == "user-agent" {
			if !readingAgents {
				current = nil
			}
			readingAgents = true

			agent := strings.ToLower(value)
			group, exists := groups[agent]
			if !exists {
				group = &Group{Agent: agent}
				groups[agent] = group
				order = append(order, agent)
			}
			current = append(current, group)
			continue
		}
		readingAgents = false

		switch directive {
		case "allow", "disallow":
			// An empty value places no restriction
			if value == "" {
				continue
			}
			for _, group := range current {
				if directive == "allow" {
					group.Allow = append(group.Allow, value)
				} else {
					group.Disallow = append(group.Disallow, value)
				}
			}
		case "crawl-delay":
			if len(current) == 0 {
				continue
			}
			seconds, err := strconv.ParseFloat(value, 64)
			if err != nil || seconds < 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
				continue
			}
			delay = math.Max(delay, seconds)
		}
	}

	var named []*Group
	var wildcard *Group
	for _, agent := range order {
		if agent == Wildcard {
			wildcard = groups[agent]
		} else {
			named = append(named, groups[agent])
		}
	}

	return newPolicy(named, wildcard, time.Duration(delay*float64(time.Second)))
}

// IsAllowed checks the path of rawURL (a full URL or a bare path) against
// the named-agent groups first, then the wildcard group. Nothing matching
// means allowed.
func (p *Policy) IsAllowed(rawURL string) bool {
	path := requestPath(rawURL)

	for _, group := range p.named {
		if allowed, matched := group.match(path); matched {
			return allowed
		}
	}
	if p.wildcard != nil {
		if allowed, matched := p.wildcard.match(path); matched {
			return allowed
		}
	}
	return true
}

func requestPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return path
}

// CrawlDelay returns the minimum time between two fetches
func (p *Policy) CrawlDelay() time.Duration {
	return p.delay
}

// Groups returns the named groups followed by the wildcard group, if any
func (p *Policy) Groups() []Group {
	out := make([]Group, 0, len(p.named)+1)
	for _, g := range p.named {
		out = append(out, *g)
	}
	if p.wildcard != nil {
		out = append(out, *p.wildcard)
	}
	return out
}

// RespectDelay blocks until at least CrawlDelay has passed since the last
// permitted fetch. It must be called right before every fetch, including
// the first.
func (p *Policy) RespectDelay(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter.Wait(ctx)
}

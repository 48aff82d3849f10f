package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alvmarrod/site-weaver/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesFixture = `
User-agent: *
Disallow: /private/
Allow: /public/
Crawl-delay: 2

User-agent: testbot
Disallow: /test/
Allow: /test/public/
`

func TestParseRules(t *testing.T) {
	p := Parse(strings.NewReader(rulesFixture))

	assert.False(t, p.IsAllowed("/private/page"))
	assert.True(t, p.IsAllowed("/public/page"))
	assert.True(t, p.IsAllowed("/other/page"))
	assert.Equal(t, 2*time.Second, p.CrawlDelay())
}

func TestNamedGroupsTakePrecedence(t *testing.T) {
	p := Parse(strings.NewReader(rulesFixture))

	assert.False(t, p.IsAllowed("https://example.com/test/secret"))
	assert.True(t, p.IsAllowed("https://example.com/test/public/page"), "allow is checked before disallow")

	groups := p.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "testbot", groups[0].Agent)
	assert.Equal(t, Wildcard, groups[1].Agent)
}

func TestParseDirectives(t *testing.T) {
	tests := []struct {
		name    string
		content string
		allowed map[string]bool
		delay   time.Duration
	}{
		{
			name:    "deny all",
			content: "User-agent: *\nDisallow: /\n",
			allowed: map[string]bool{"/": false, "/anything": false},
		},
		{
			name:    "empty disallow allows everything",
			content: "User-agent: *\nDisallow:\n",
			allowed: map[string]bool{"/": true, "/x": true},
		},
		{
			name:    "comments and case",
			content: "USER-AGENT: * # everyone\nDISALLOW: /tmp # scratch\n# Disallow: /commented\n",
			allowed: map[string]bool{"/tmp/file": false, "/commented": true},
		},
		{
			name:    "rules before any user-agent are ignored",
			content: "Disallow: /early\nCrawl-delay: 9\nUser-agent: *\nDisallow: /late\n",
			allowed: map[string]bool{"/early": true, "/late": false},
		},
		{
			name:    "delays combine by maximum",
			content: "User-agent: a\nCrawl-delay: 3\nUser-agent: *\nCrawl-delay: 1.5\nUser-agent: b\nCrawl-delay: 0.5\n",
			delay:   3 * time.Second,
		},
		{
			name:    "unparseable delay ignored",
			content: "User-agent: *\nCrawl-delay: 1\nCrawl-delay: soon\nCrawl-delay: -4\n",
			delay:   time.Second,
		},
		{
			name:    "consecutive agents share rules",
			content: "User-agent: alpha\nUser-agent: beta\nDisallow: /shared\n",
			allowed: map[string]bool{"/shared/page": false, "/open": true},
		},
		{
			name:    "query is part of the matched path",
			content: "User-agent: *\nDisallow: /search?q=\n",
			allowed: map[string]bool{"https://example.com/search?q=go": false, "https://example.com/search": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(strings.NewReader(tt.content))
			for path, want := range tt.allowed {
				assert.Equal(t, want, p.IsAllowed(path), "path %s", path)
			}
			assert.Equal(t, tt.delay, p.CrawlDelay())
		})
	}
}

func TestRepeatedAgentGroupsMerge(t *testing.T) {
	p := Parse(strings.NewReader("User-agent: bot\nDisallow: /a\n\nUser-agent: other\nDisallow: /x\n\nUser-agent: BOT\nDisallow: /b\n"))

	groups := p.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"/a", "/b"}, groups[0].Disallow)
}

func TestPermissive(t *testing.T) {
	p := Permissive()

	assert.True(t, p.IsAllowed("/any/path"))
	assert.Zero(t, p.CrawlDelay())
	assert.Empty(t, p.Groups())
}

func newFetcher(ctx context.Context) *fetch.Fetcher {
	return fetch.New(ctx, fetch.Options{Timeout: 2 * time.Second})
}

func TestFetchPolicyMissingFileIsPermissive(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	ctx := context.Background()
	p := FetchPolicy(ctx, newFetcher(ctx), server.URL+"/docs/start")

	assert.True(t, p.IsAllowed("/any/path"))
	assert.Zero(t, p.CrawlDelay())
}

func TestFetchPolicyUnreachableHostIsPermissive(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	ctx := context.Background()
	p := FetchPolicy(ctx, newFetcher(ctx), url)

	assert.True(t, p.IsAllowed("/"))
}

func TestFetchPolicyReadsRobotsAtHostRoot(t *testing.T) {
	var requested string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(rulesFixture))
	}))
	defer server.Close()

	ctx := context.Background()
	p := FetchPolicy(ctx, newFetcher(ctx), server.URL+"/deep/seed/page.html")

	assert.Equal(t, "/robots.txt", requested)
	assert.False(t, p.IsAllowed(server.URL+"/private/page"))
	assert.Equal(t, 2*time.Second, p.CrawlDelay())
}

func TestRespectDelay(t *testing.T) {
	p := Parse(strings.NewReader("User-agent: *\nCrawl-delay: 0.1\n"))
	ctx := context.Background()

	require.NoError(t, p.RespectDelay(ctx))
	first := time.Now()
	require.NoError(t, p.RespectDelay(ctx))

	assert.GreaterOrEqual(t, time.Since(first), 90*time.Millisecond)
}

func TestRespectDelayWithoutDelayDoesNotBlock(t *testing.T) {
	p := Permissive()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.RespectDelay(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRespectDelayHonoursCancellation(t *testing.T) {
	p := Parse(strings.NewReader("User-agent: *\nCrawl-delay: 60\n"))
	require.NoError(t, p.RespectDelay(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, p.RespectDelay(ctx))
}

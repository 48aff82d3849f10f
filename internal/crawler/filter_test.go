package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"removes fragment", "http://example.com/docs#getting-started", "http://example.com/docs"},
		{"removes tracking parameters", "http://example.com/page?utm_source=google&session_id=123", "http://example.com/page"},
		{"fragment swallows query-like text", "http://example.com/page#section?utm_source=google&session_id=123", "http://example.com/page"},
		{"untouched url", "http://example.com/page", "http://example.com/page"},
		{"keeps other parameters in order", "https://example.com/p?b=2&utm_source=x&a=1", "https://example.com/p?b=2&a=1"},
		{"strip plus fragment", "https://example.com/page?utm_source=x&id=1#section", "https://example.com/page?id=1"},
		{"empty query marker dropped", "https://example.com/page?", "https://example.com/page"},
		{"parse failure returns input", "http://[::1", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, DefaultStripParams))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"http://example.com/docs#getting-started",
		"https://example.com/p?b=2&utm_source=x&a=1#frag",
		"https://example.com/a%20b?q=hello%20world",
		"https://EXAMPLE.com/Path/?session_id=1",
		"/relative/path?x=1#y",
		"not a url at all",
		"http://[::1",
	}

	for _, in := range inputs {
		once := Normalize(in, DefaultStripParams)
		assert.Equal(t, once, Normalize(once, DefaultStripParams), "input %q", in)
	}
}

func TestNormalizeCustomStripList(t *testing.T) {
	got := Normalize("https://example.com/?ref=abc&utm_source=x", []string{"ref"})
	assert.Equal(t, "https://example.com/?utm_source=x", got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		candidate string
		want      LinkClass
	}{
		{"relative path", "http://example.com", "/internal", LinkInternal},
		{"relative without slash", "http://example.com/docs/", "page.html", LinkInternal},
		{"other host", "http://example.com", "http://external.com", LinkExternal},
		{"host case ignored", "https://example.com", "https://EXAMPLE.com/x", LinkInternal},
		{"port ignored", "https://example.com", "https://example.com:8443/x", LinkInternal},
		{"scheme ignored", "https://example.com", "http://example.com/x", LinkInternal},
		{"subdomain is another host", "https://example.com", "https://docs.example.com/", LinkExternal},
		{"protocol relative", "https://example.com", "//cdn.example.org/lib.js", LinkExternal},
		{"mailto has no host", "https://example.com", "mailto:a@b.com", LinkInternal},
		{"javascript has no host", "https://example.com", "javascript:void(0)", LinkInternal},
		{"tel has no host", "https://example.com", "tel:+15551234", LinkInternal},
		{"unparseable candidate", "https://example.com", "http://[::1", LinkUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.base, tt.candidate))
		})
	}
}

func TestResolve(t *testing.T) {
	got, err := Resolve("http://example.com/docs/intro.html", "../about")
	assert.NoError(t, err)
	assert.Equal(t, "http://example.com/about", got)

	got, err = Resolve("http://example.com", "  /trimmed  ")
	assert.NoError(t, err)
	assert.Equal(t, "http://example.com/trimmed", got)

	_, err = Resolve("http://example.com", "http://[::1")
	assert.Error(t, err)
}

func TestWithinBoundary(t *testing.T) {
	seed := "https://example.com/docs"

	assert.True(t, WithinBoundary(seed, "https://example.com/docs"))
	assert.True(t, WithinBoundary(seed, "https://example.com/docs/intro"))
	assert.False(t, WithinBoundary(seed, "https://example.com/blog"))
	assert.False(t, WithinBoundary(seed, "http://example.com/docs/intro"))
	assert.False(t, WithinBoundary(seed, "https://other.com/docs"))
}

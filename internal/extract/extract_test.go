package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "headings and links",
			html: "<html><body><h1>Test</h1><a href='/internal'>Internal Link</a><a href='http://external.com'>External Link</a></body></html>",
			want: "Test Internal Link External Link",
		},
		{
			name: "scripts and styles are dropped",
			html: "<html><head><title>Ignored</title></head><body><script>var x = 1;</script><style>p{}</style><p>Visible</p><!-- hidden --></body></html>",
			want: "Visible",
		},
		{
			name: "whitespace is trimmed per fragment",
			html: "<body>\n  <p>  one  </p>\n\n<p>two</p>\n</body>",
			want: "one two",
		},
		{
			name: "empty document",
			html: "",
			want: "",
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ExtractText([]byte(tt.html)))
		})
	}
}

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
		<a href="/internal">Internal</a>
		<a>No href</a>
		<a href="http://external.com">External</a>
		<a href="#top">Top</a>
	</body></html>`

	links := New().ExtractLinks([]byte(html))
	assert.Equal(t, []string{"/internal", "", "http://external.com", "#top"}, links)
}

func TestExtractLinksNone(t *testing.T) {
	links := New().ExtractLinks([]byte("<p>plain</p>"))
	assert.Empty(t, links)
	assert.NotNil(t, links)
}

// Package extract turns raw HTML into the plain text and hyperlinks the
// traversal engine works with.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// skippedElements hold no readable text
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Extractor parses HTML with goquery
type Extractor struct{}

// New creates an Extractor
func New() *Extractor {
	return &Extractor{}
}

// ExtractText returns the readable text of the <body>, one space between
// text fragments, each fragment trimmed. Malformed or body-less content
// yields an empty string.
func (e *Extractor) ExtractText(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		logrus.Errorf("Error extracting text: %v", err)
		return ""
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		logrus.Warn("No body tag found in HTML.")
		return ""
	}

	var parts []string
	for _, node := range body.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
	case html.CommentNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// ExtractLinks returns the href of every <a> element in document order.
// Anchors without an href produce an empty entry.
func (e *Extractor) ExtractLinks(raw []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		logrus.Errorf("Error extracting links: %v", err)
		return nil
	}

	links := make([]string, 0)
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, href)
	})
	return links
}

package storage

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// OutputDir returns the folder a crawl of seedURL writes into:
// <root>/<host> or <root>/<host>-<path segments joined by "-">
func OutputDir(root, seedURL string) string {
	parsed, err := url.Parse(seedURL)
	domain := ""
	path := ""
	if err == nil {
		domain = parsed.Host
		path = strings.ReplaceAll(strings.Trim(parsed.Path, "/"), "/", "-")
	}
	if domain == "" {
		domain = strings.Split(seedURL, "/")[0]
	}

	if path != "" {
		return filepath.Join(root, domain+"-"+path)
	}
	return filepath.Join(root, domain)
}

// ContentFileName returns "<host>-content_<date>.<format>"
func ContentFileName(seedURL, format string, now time.Time) string {
	host := ""
	if parsed, err := url.Parse(seedURL); err == nil {
		host = strings.ToLower(parsed.Host)
	}
	return fmt.Sprintf("%s-content_%s.%s", host, now.Format(dateLayout), format)
}

// SitemapFileName returns "<domain>-sitemap_<date>.dot" where domain is the
// output folder name up to its first "-"
func SitemapFileName(outputDir string, now time.Time) string {
	domain := strings.Split(filepath.Base(outputDir), "-")[0]
	return fmt.Sprintf("%s-sitemap_%s.dot", domain, now.Format(dateLayout))
}

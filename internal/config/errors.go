package config

import "errors"

var (
	ErrNoSeed          = errors.New("seed_url is required")
	ErrInvalidSeed     = errors.New("seed_url must be an absolute http(s) URL")
	ErrInvalidDepth    = errors.New("max_depth must be -1 (unlimited) or >= 0")
	ErrInvalidMaxPages = errors.New("max_pages must be -1 (unlimited) or >= 1")
	ErrInvalidFormat   = errors.New("unsupported output_format")
	ErrInvalidTimeout  = errors.New("invalid request timeout")
	ErrInvalidRetries  = errors.New("retry_attempts must be >= 0")
)

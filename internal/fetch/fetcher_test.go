package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSuccess(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	ctx := context.Background()
	f := New(ctx, Options{Timeout: 2 * time.Second, UserAgent: "sitecrawler-test"})

	resp, err := f.Fetch(ctx, server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "<h1>Test</h1>")
	assert.Equal(t, server.URL+"/page", resp.URL)
	assert.Equal(t, "sitecrawler-test", userAgent)
}

func TestFetchNotFoundIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	ctx := context.Background()
	f := New(ctx, Options{Timeout: 2 * time.Second, Retries: 3, RetryDelay: time.Millisecond})

	_, err := f.Fetch(ctx, server.URL)
	require.Error(t, err)

	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.False(t, fetchErr.Transient())
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	ctx := context.Background()
	f := New(ctx, Options{Timeout: 2 * time.Second, Retries: 3, RetryDelay: time.Millisecond})

	resp, err := f.Fetch(ctx, server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "ok")
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx := context.Background()
	f := New(ctx, Options{Timeout: 2 * time.Second, Retries: 2, RetryDelay: time.Millisecond})

	_, err := f.Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestFetchTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	ctx := context.Background()
	f := New(ctx, Options{Timeout: time.Second})

	_, err := f.Fetch(ctx, url)
	require.Error(t, err)

	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
	assert.True(t, fetchErr.Transient())
}

func TestErrorTransient(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}

	for _, tt := range tests {
		err := &Error{URL: "http://example.com", StatusCode: tt.status, Err: errors.New("boom")}
		assert.Equal(t, tt.want, err.Transient(), "status %d", tt.status)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{URL: "http://example.com", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "http://example.com")
}

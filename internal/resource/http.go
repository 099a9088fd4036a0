// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPLocator fetches http(s) URIs with retries on transient failures.
type HTTPLocator struct {
	Client *retryablehttp.Client
}

// NewHTTPLocator returns an HTTPLocator retrying up to retries times.
func NewHTTPLocator(retries int, timeout time.Duration) *HTTPLocator {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return &HTTPLocator{Client: c}
}

func (l *HTTPLocator) do(ctx context.Context, method, uri string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", uri, err)
	}
	log.WithField("uri", uri).Debugf("%s resource", method)

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, &NotFoundError{URI: uri, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", uri, resp.StatusCode)
	}
	return resp, nil
}

func (l *HTTPLocator) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	resp, err := l.do(ctx, http.MethodGet, uri)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ModTime issues a HEAD request and parses Last-Modified. Servers that do not
// send the header yield the zero time.
func (l *HTTPLocator) ModTime(ctx context.Context, uri string) (time.Time, error) {
	resp, err := l.do(ctx, http.MethodHead, uri)
	if err != nil {
		return time.Time{}, err
	}
	_ = resp.Body.Close()

	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		return time.Time{}, nil
	}
	t, err := http.ParseTime(lm)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad Last-Modified for %s: %w", uri, err)
	}
	return t, nil
}

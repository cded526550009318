// Package infra provides shared infrastructure components used across
// the application: HTTP utilities for talking to upstream providers.
package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient is the shared client for upstream requests. Individual
// calls are additionally bounded by their context deadline.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// DoGet performs a GET request and returns the response body and status
// code. A non-2xx status is returned as an error with the body already
// drained and closed.
func DoGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, resp.StatusCode, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	return resp.Body, resp.StatusCode, nil
}

package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
)

// maxArtifactBytes bounds a single fetched file.
const maxArtifactBytes = 64 << 20

// Fetcher reads artifact files from a location.
type Fetcher interface {
	// Schemes returns the URL schemes the fetcher serves.
	Schemes() []string

	// Fetch returns the full content at location.
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// HTTPFetcher fetches artifacts over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Schemes returns http and https.
func (f *HTTPFetcher) Schemes() []string {
	return []string{"http", "https"}
}

// Fetch issues a GET request for location.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, location)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: unexpected status %s", location, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	if len(data) > maxArtifactBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrMalformedArtifact, location, maxArtifactBytes)
	}

	return data, nil
}

// FileFetcher reads artifacts from the local filesystem.
type FileFetcher struct{}

// Schemes returns file.
func (FileFetcher) Schemes() []string {
	return []string{"file"}
}

// Fetch reads the file at location, given as a file:// URL or a plain path.
func (FileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := location
	if u, err := url.Parse(location); err == nil && (u.Scheme == "file" || u.Scheme == "") {
		path = u.Path
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, err
	}
	if info.Size() > maxArtifactBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrMalformedArtifact, path, maxArtifactBytes)
	}

	return os.ReadFile(path)
}

package model

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingFetcher keeps recently fetched artifact files in an expiring LRU so switching
// back and forth between operations does not hit the origin every time.
type CachingFetcher struct {
	next  Fetcher
	cache *expirable.LRU[string, []byte]
}

// NewCachingFetcher wraps next with a cache of size entries that expire after ttl.
// A non-positive size disables caching and returns next unchanged.
func NewCachingFetcher(next Fetcher, size int, ttl time.Duration) Fetcher {
	if size <= 0 {
		return next
	}

	return &CachingFetcher{
		next:  next,
		cache: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

// Schemes returns the schemes of the wrapped fetcher.
func (f *CachingFetcher) Schemes() []string {
	return f.next.Schemes()
}

// Fetch returns a cached copy or fetches and stores it. Failures are not cached.
func (f *CachingFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if data, ok := f.cache.Get(location); ok {
		slog.Debug("Artifact cache hit", "location", location)
		return data, nil
	}

	data, err := f.next.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}

	f.cache.Add(location, data)
	return data, nil
}

// Purge drops every cached entry.
func (f *CachingFetcher) Purge() {
	f.cache.Purge()
}

// Len returns the number of cached entries.
func (f *CachingFetcher) Len() int {
	return f.cache.Len()
}

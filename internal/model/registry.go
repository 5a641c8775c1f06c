package model

import (
	"fmt"
	"net/url"
	"sync"
)

// FetcherRegistry maps URL schemes to fetchers.
type FetcherRegistry struct {
	fetchers map[string]Fetcher
	mu       sync.RWMutex
}

// NewFetcherRegistry creates an empty fetcher registry.
func NewFetcherRegistry() *FetcherRegistry {
	return &FetcherRegistry{
		fetchers: make(map[string]Fetcher),
	}
}

// Register adds a fetcher for each of its schemes.
func (r *FetcherRegistry) Register(f Fetcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, scheme := range f.Schemes() {
		if _, ok := r.fetchers[scheme]; ok {
			return fmt.Errorf("%w: %q", ErrFetcherRegistered, scheme)
		}
	}
	for _, scheme := range f.Schemes() {
		r.fetchers[scheme] = f
	}

	return nil
}

// Get returns the fetcher registered for scheme.
func (r *FetcherRegistry) Get(scheme string) (Fetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fetchers[scheme]
	return f, ok
}

// ForLocation picks the fetcher for a URL or bare filesystem path.
func (r *FetcherRegistry) ForLocation(location string) (Fetcher, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location %q: %w", location, err)
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "file"
	}

	f, ok := r.Get(scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFetcherNotFound, scheme)
	}
	return f, nil
}

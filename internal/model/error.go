package model

import "errors"

// Error definitions for the model package.
var (
	ErrUnknownOperation    = errors.New("unknown operation")
	ErrNotReady            = errors.New("model is not ready")
	ErrDisposed            = errors.New("model is disposed")
	ErrClosed              = errors.New("model manager is closed")
	ErrFetcherNotFound     = errors.New("no fetcher registered for scheme")
	ErrFetcherRegistered   = errors.New("fetcher is already registered for scheme")
	ErrArtifactNotFound    = errors.New("model artifact not found")
	ErrMalformedArtifact   = errors.New("malformed model artifact")
	ErrUnsupportedArtifact = errors.New("unsupported model artifact")
)

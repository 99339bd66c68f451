package domain

import "errors"

// Error taxonomy for extractions. Callers match with errors.Is.
// ErrRenderFailure never leaves the renderer unless every strategy failed.
var (
	ErrConfiguration        = errors.New("model API key is not configured")
	ErrFileNotFound         = errors.New("file not found")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrInvalidPageSelection = errors.New("invalid page selection")
	ErrNoValidPages         = errors.New("no valid pages selected")
	ErrRenderFailure        = errors.New("render failure")
	ErrTransientUpstream    = errors.New("transient upstream error")
	ErrUpstreamExhausted    = errors.New("upstream retries exhausted")
)

package provider

import "errors"

// Sentinel errors callers can match with errors.Is to choose an HTTP status
// or a degraded behavior.
var (
	// ErrProviderUnavailable means the backend cannot serve requests at all:
	// bad credentials, unreachable host, or persistent upstream failure.
	ErrProviderUnavailable = errors.New("llm provider unavailable")

	// ErrContextOverflow means the request does not fit the model's context
	// window even before generation starts.
	ErrContextOverflow = errors.New("context window exceeded")

	// ErrResourceBusy means the local backend has no free inference slot.
	ErrResourceBusy = errors.New("inference slot busy")

	// ErrMalformedOutput means the model returned output that could not be
	// parsed into the expected structure after retrying.
	ErrMalformedOutput = errors.New("malformed model output")
)

package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable indicates the provider could not be reached or
	// kept failing after retries.
	ErrUpstreamUnavailable = errors.New("llm: upstream unavailable")

	// ErrUpstreamMalformed indicates the provider responded but the payload
	// could not be parsed into a valid course document.
	ErrUpstreamMalformed = errors.New("llm: upstream returned malformed content")

	// ErrInvalidRequest indicates the generation request itself is malformed.
	ErrInvalidRequest = errors.New("llm: invalid generation request")
)

// HTTPError carries a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, e.Body)
}

// retryable reports whether the error is worth another attempt. Rate limits
// and server-side failures are transient; other HTTP statuses are not.
func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}
	// Transport-level failures (refused connections, timeouts) arrive as
	// plain errors from the http client.
	return !errors.Is(err, ErrUpstreamMalformed)
}

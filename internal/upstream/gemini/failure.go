package gemini

import (
	"errors"

	"promptlab/internal/failure"
)

// AsFailure classifies an error returned by the client. fallback is the user-facing
// message used when the response was malformed.
func AsFailure(err error, fallback string) error {
	var upErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &upErr):
		return failure.Upstream(upErr.StatusCode, err)
	case errors.Is(err, ErrMalformedResponse):
		return failure.Malformed(fallback, err)
	default:
		return failure.Wrap(failure.UpstreamError, "upstream request failed", "Check your network connection and try again", err)
	}
}

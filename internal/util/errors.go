package util

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnavailable       = errors.New("temporarily unavailable")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPartialWrite      = errors.New("partial write")
	ErrGenerationFailure = errors.New("generation failed")
	ErrContentPolicy     = errors.New("content policy violation")

	ErrNoExtractableText = fmt.Errorf("no extractable text found in PDF: %w", ErrNotFound)
)

// Mark attaches a taxonomy sentinel to err so errors.Is matches both the sentinel and
// the original cause. A nil err stays nil.
func Mark(err, kind error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// IsRetryable reports whether a caller-side retry can succeed without changing the input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrPartialWrite)
}

// Kind returns the short taxonomy name of err, or "internal" when it carries none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrPartialWrite):
		return "partial_write"
	case errors.Is(err, ErrContentPolicy):
		return "content_policy"
	case errors.Is(err, ErrGenerationFailure):
		return "generation_failure"
	default:
		return "internal"
	}
}

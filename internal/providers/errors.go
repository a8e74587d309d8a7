package providers

import (
	"context"
	"errors"
	"strings"

	"paperchat/internal/util"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
	ErrorPolicy    ErrorType = "policy"
	ErrorCanceled  ErrorType = "canceled"
)

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "rate_limit"), strings.Contains(e, "too many requests"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "content_filter"), strings.Contains(e, "content policy"), strings.Contains(e, "safety"), strings.Contains(e, "blocked"):
		return ErrorPolicy
	case strings.Contains(e, "context length"), strings.Contains(e, "context_length"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection refused"), strings.Contains(e, "502"), strings.Contains(e, "503"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// Wrap marks a raw provider error with its taxonomy sentinel. Permanent errors and
// cancellations are returned as they are.
func Wrap(err error) error {
	switch ClassifyError(err) {
	case ErrorQuota, ErrorRate:
		return util.Mark(err, util.ErrRateLimited)
	case ErrorTransient:
		return util.Mark(err, util.ErrUnavailable)
	case ErrorContext:
		return util.Mark(err, util.ErrInvalidInput)
	case ErrorPolicy:
		return util.Mark(err, util.ErrContentPolicy)
	default:
		return err
	}
}

// shouldFailover reports whether another provider may succeed where this one failed.
func shouldFailover(err error) bool {
	switch ClassifyError(err) {
	case ErrorCanceled, ErrorPolicy, ErrorContext:
		return false
	default:
		return true
	}
}

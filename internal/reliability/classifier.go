package reliability

import (
	"context"
	"errors"
	"time"

	"github.com/beholdhq/behold-agent/internal/tracking"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableDeliveryError reports whether a webhook processing error should
// be answered with a retryable status so the platform redelivers. Transient
// store failures and timeouts qualify; everything else is terminal.
func IsRetryableDeliveryError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, tracking.ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/beholdhq/behold-agent/internal/tracking"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsRetryableDeliveryError(t *testing.T) {
	wrapped := fmt.Errorf("record order: %w", tracking.ErrStoreUnavailable)

	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("malformed payload"), false},
		{tracking.ErrStoreUnavailable, true},
		{wrapped, true},
		{context.DeadlineExceeded, true},
	}
	for _, tc := range cases {
		if got := IsRetryableDeliveryError(tc.err); got != tc.want {
			t.Fatalf("IsRetryableDeliveryError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}

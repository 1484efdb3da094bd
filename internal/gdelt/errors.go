package gdelt

import (
	"fmt"
	"time"
)

// RateLimitError is returned when a search is refused because of rate limits,
// either by the local throttle or by GDELT itself.
type RateLimitError struct {
	RetryAfter time.Duration
	Status     int    // upstream status, 0 when refused locally
	Preview    string // start of the upstream body
}

func (e *RateLimitError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gdelt: rate limited locally, retry after %v", e.RetryAfter)
	}
	return fmt.Sprintf("gdelt: upstream rate limited (status %d)", e.Status)
}

// InvalidResponseError is returned when GDELT answers with something that is not JSON.
type InvalidResponseError struct {
	Status  int
	URL     string
	Preview string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("gdelt: non-JSON response (status %d)", e.Status)
}

package retry

import "testing"

// TestFastRetries reduces the backoff intervals so that tests exercising
// retries finish quickly.
func TestFastRetries(t testing.TB) {
	fastRetries = true
	t.Cleanup(func() {
		fastRetries = false
	})
}

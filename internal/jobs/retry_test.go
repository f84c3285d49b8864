package jobs

import (
	"testing"
	"time"
)

func TestNextRetryDelay(t *testing.T) {
	tests := []struct {
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{0, 48 * time.Second, 72 * time.Second},    // 1min ± 20%
		{1, 4 * time.Minute, 6 * time.Minute},      // 5min ± 20%
		{2, 24 * time.Minute, 36 * time.Minute},    // 30min ± 20%
		{3, 96 * time.Minute, 144 * time.Minute},   // 2h ± 20%
		{4, 576 * time.Minute, 864 * time.Minute},  // 12h ± 20%
		{10, 576 * time.Minute, 864 * time.Minute}, // beyond max stays at last
		{-1, 48 * time.Second, 72 * time.Second},   // negative treated as 0
	}

	for _, tt := range tests {
		// Run multiple times to account for jitter
		for i := 0; i < 10; i++ {
			delay := NextRetryDelay(tt.attempt)
			if delay < tt.minDelay || delay > tt.maxDelay {
				t.Errorf("NextRetryDelay(%d) = %v, want between %v and %v",
					tt.attempt, delay, tt.minDelay, tt.maxDelay)
			}
		}
	}
}

func TestIsExhausted(t *testing.T) {
	tests := []struct {
		attempt     int
		maxAttempts int
		want        bool
	}{
		{0, 6, false},
		{5, 6, false},
		{6, 6, true},
		{7, 6, true},
	}

	for _, tt := range tests {
		if got := IsExhausted(tt.attempt, tt.maxAttempts); got != tt.want {
			t.Errorf("IsExhausted(%d, %d) = %v, want %v",
				tt.attempt, tt.maxAttempts, got, tt.want)
		}
	}
}

func TestRetryDelays_Increasing(t *testing.T) {
	delays := RetryDelays()
	if len(delays) != 5 {
		t.Fatalf("expected 5 retry delays, got %d", len(delays))
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1] {
			t.Errorf("delays should be increasing: %v <= %v", delays[i], delays[i-1])
		}
	}

	delays[0] = 0
	if RetryDelays()[0] == 0 {
		t.Error("RetryDelays must return a copy")
	}
}

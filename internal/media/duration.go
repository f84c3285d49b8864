package media

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// ErrInvalidDuration is returned for strings that are not ISO-8601 durations
// or that do not fit a time.Duration.
var ErrInvalidDuration = errors.New("invalid ISO-8601 duration")

// maxSeconds is the longest span a time.Duration can hold.
var maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// ParseISODuration parses an ISO-8601 duration such as "PT1H2M3S" or
// "P1DT30M". Years and months are rejected since their length varies, and so
// are negative spans.
func ParseISODuration(s string) (time.Duration, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if !designatorsHaveValues(norm) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	d, err := duration.Parse(norm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
	}
	if d.Negative || d.Years != 0 || d.Months != 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	secs := d.Weeks*7*86400 + d.Days*86400 + d.Hours*3600 + d.Minutes*60 + d.Seconds
	if math.IsNaN(secs) || secs >= maxSeconds {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidDuration, s)
	}
	return time.Duration(math.Round(secs * float64(time.Second))), nil
}

// designatorsHaveValues requires a number before every unit designator and
// at least one component, so "P", "PT", "P1DT" and "PTS" are refused.
func designatorsHaveValues(s string) bool {
	if len(s) < 3 || s[0] != 'P' || strings.HasSuffix(s, "T") {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c < 'A' || c > 'Z' || c == 'T' {
			continue
		}
		if p := s[i-1]; p < '0' || p > '9' {
			return false
		}
	}
	return true
}

// FormatClock renders d as H:MM:SS. Hours are not wrapped into days.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	secs := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

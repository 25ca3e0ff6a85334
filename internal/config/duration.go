package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// durationPattern matches an integer followed by one unit suffix.
var durationPattern = regexp.MustCompile(`^([0-9]+)(ns|us|ms|s|m|h|d|w|y)$`)

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
	"y":  365 * 24 * time.Hour,
}

// ParseDuration parses an interval such as "500ms", "2s" or "1d".
// Supported units are ns, us, ms, s, m, h, d, w and y. Strings accepted by
// time.ParseDuration ("1m30s", "1.5s") are accepted as well.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: expected [0-9]+(ns|us|ms|s|m|h|d|w|y)", s)
		}
		return d, nil
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	unit := durationUnits[m[2]]
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("invalid duration %q: overflows", s)
	}
	return time.Duration(n) * unit, nil
}

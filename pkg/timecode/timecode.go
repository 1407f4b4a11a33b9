// Package timecode parses and formats media positions.
//
// Accepted forms:
//   - "90", "12.5": seconds
//   - "1m30s", "1h2m": Go duration syntax, plus word units ("90 seconds")
//   - "01:30", "00:01:30.5": [hh:]mm:ss[.fraction]
//
// Negative positions are rejected; a media position is never before zero.
package timecode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var wordUnits = map[string]string{
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h",
	"minute": "m", "minutes": "m", "min": "m", "mins": "m",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s",
	"millisecond": "ms", "milliseconds": "ms",
}

var wordUnitPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(hours?|hrs?|minutes?|mins?|seconds?|secs?|milliseconds?)\b`)

// Parse converts s to a non-negative duration.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("timecode: empty string")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("timecode: negative position %q", s)
	}

	if strings.Contains(s, ":") {
		return parseClock(s)
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSeconds(secs, s)
	}

	normalized := wordUnitPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := wordUnitPattern.FindStringSubmatch(match)
		return m[1] + wordUnits[strings.ToLower(m[2])]
	})
	normalized = strings.Join(strings.Fields(normalized), "")

	d, err := time.ParseDuration(normalized)
	if err != nil {
		return 0, fmt.Errorf("timecode: %w", err)
	}
	return d, nil
}

// MustParse is like Parse but panics on error. Use only for constants.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("timecode: too many fields in %q", s)
	}

	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs >= 60 {
		return 0, fmt.Errorf("timecode: invalid seconds in %q", s)
	}

	var total float64
	for i, p := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("timecode: invalid field %q in %q", p, s)
		}
		// Minutes are bounded when hours are present.
		if len(parts) == 3 && i == 1 && n >= 60 {
			return 0, fmt.Errorf("timecode: invalid minutes in %q", s)
		}
		total = total*60 + float64(n)
	}
	return fromSeconds(total*60+secs, s)
}

func fromSeconds(secs float64, src string) (time.Duration, error) {
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) || secs > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("timecode: invalid position %q", src)
	}
	return time.Duration(math.Round(secs * float64(time.Second))), nil
}

// Format renders d as hh:mm:ss.mmm.
func Format(d time.Duration) string {
	if d < 0 {
		return "-" + Format(-d)
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	sec := ms / 1000
	ms -= sec * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, sec, ms)
}

// Seconds returns d as fractional seconds.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

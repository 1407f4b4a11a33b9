// Package bytesize parses and formats byte sizes such as "512MB" or "1.5 GiB".
// Every unit uses the binary (1024) base; a bare number is a count of bytes.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

const (
	B  Size = 1
	KB      = 1024 * B
	MB      = 1024 * KB
	GB      = 1024 * MB
	TB      = 1024 * GB
)

var units = []struct {
	size  Size
	label string
	names []string
}{
	{TB, "TB", []string{"t", "tb", "tib"}},
	{GB, "GB", []string{"g", "gb", "gib"}},
	{MB, "MB", []string{"m", "mb", "mib"}},
	{KB, "KB", []string{"k", "kb", "kib"}},
	{B, "B", []string{"", "b", "byte", "bytes"}},
}

var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// Parse parses a size like "5MB", "1.5 GB" or "1024".
func Parse(s string) (Size, error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bytesize: invalid size %q", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", m[1], err)
	}
	unit := strings.ToLower(m[2])
	for _, u := range units {
		for _, name := range u.names {
			if name == unit {
				return Size(value * float64(u.size)), nil
			}
		}
	}
	return 0, fmt.Errorf("bytesize: unknown unit %q", m[2])
}

// Format renders s using the largest unit that keeps the value at or above one.
func Format(s Size) string {
	if s < 0 {
		return "-" + Format(-s)
	}
	for _, u := range units {
		if s >= u.size && u.size > B {
			v := strconv.FormatFloat(float64(s)/float64(u.size), 'f', 2, 64)
			v = strings.TrimRight(strings.TrimRight(v, "0"), ".")
			return v + u.label
		}
	}
	return fmt.Sprintf("%dB", int64(s))
}

func (s Size) String() string {
	return Format(s)
}

// Bytes returns the size as a plain byte count.
func (s Size) Bytes() int64 {
	return int64(s)
}

// UnmarshalText implements encoding.TextUnmarshaler so sizes can be read
// from configuration files and environment variables.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(Format(s)), nil
}

package config

import (
	"time"

	"github.com/jmylchreest/mediatool/pkg/timecode"
)

// Timecode is a media position that supports the forms accepted by
// timecode.Parse:
//   - "10" = ten seconds
//   - "1m30s" = ninety seconds
//   - "00:01:30.5" = ninety and a half seconds
//
// It implements encoding.TextUnmarshaler for Viper/YAML support.
type Timecode time.Duration

// ParseTimecode parses a media position.
func ParseTimecode(s string) (Timecode, error) {
	d, err := timecode.Parse(s)
	if err != nil {
		return 0, err
	}
	return Timecode(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timecode) UnmarshalText(text []byte) error {
	parsed, err := ParseTimecode(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Timecode) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Duration returns the position as a time.Duration.
func (t Timecode) Duration() time.Duration {
	return time.Duration(t)
}

// Seconds returns the position in fractional seconds.
func (t Timecode) Seconds() float64 {
	return time.Duration(t).Seconds()
}

func (t Timecode) String() string {
	return timecode.Format(time.Duration(t))
}

package remux

import (
	"fmt"
	"time"

	"github.com/jmylchreest/mediatool/internal/media"
)

// Window is an immutable time range in seconds. Both bounds are inclusive.
type Window struct {
	Start    float64
	Duration float64
}

// NewWindow builds a window from a start position and a duration.
func NewWindow(start, duration time.Duration) (Window, error) {
	if start < 0 || duration < 0 {
		return Window{}, fmt.Errorf("window start and duration must not be negative (start %v, duration %v)", start, duration)
	}
	return Window{Start: start.Seconds(), Duration: duration.Seconds()}, nil
}

// End returns Start + Duration.
func (w Window) End() float64 {
	return w.Start + w.Duration
}

func (w Window) String() string {
	return fmt.Sprintf("[%.3fs, %.3fs]", w.Start, w.End())
}

// Decision is the window filter's verdict on a packet.
type Decision int

const (
	Keep Decision = iota
	Drop
	// Stop ends the packet loop for every stream.
	Stop
)

func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case Drop:
		return "drop"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Classify decides what to do with a packet presented at pts seconds.
func Classify(pts float64, w Window) Decision {
	switch {
	case pts > w.End():
		return Stop
	case pts >= w.Start:
		return Keep
	default:
		return Drop
	}
}

// PacketSeconds converts a packet's PTS to seconds in time base tb. An unset
// PTS counts as zero.
func PacketSeconds(p *media.Packet, tb media.Rational) float64 {
	if !p.HasPTS() || tb.Den == 0 {
		return 0
	}
	return float64(p.PTS) * float64(tb.Num) / float64(tb.Den)
}

// UnsetPTSPolicy decides how packets without a PTS pass the window filter.
type UnsetPTSPolicy int

const (
	// UnsetPTSZero classifies the packet as if presented at second 0.
	UnsetPTSZero UnsetPTSPolicy = iota
	// UnsetPTSPassthrough keeps the packet without consulting the window.
	UnsetPTSPassthrough
	// UnsetPTSDrop drops the packet without consulting the window.
	UnsetPTSDrop
)

// ParseUnsetPTSPolicy parses "zero", "passthrough" or "drop".
func ParseUnsetPTSPolicy(s string) (UnsetPTSPolicy, error) {
	switch s {
	case "", "zero":
		return UnsetPTSZero, nil
	case "passthrough":
		return UnsetPTSPassthrough, nil
	case "drop":
		return UnsetPTSDrop, nil
	default:
		return UnsetPTSZero, fmt.Errorf("unknown unset pts policy %q", s)
	}
}

func (p UnsetPTSPolicy) String() string {
	switch p {
	case UnsetPTSPassthrough:
		return "passthrough"
	case UnsetPTSDrop:
		return "drop"
	default:
		return "zero"
	}
}

// Filter returns the per-packet decision function used by Trim.
func (w Window) Filter(unset UnsetPTSPolicy) func(*media.Packet, media.Rational) Decision {
	return func(p *media.Packet, tb media.Rational) Decision {
		if !p.HasPTS() {
			switch unset {
			case UnsetPTSPassthrough:
				return Keep
			case UnsetPTSDrop:
				return Drop
			}
		}
		return Classify(PacketSeconds(p, tb), w)
	}
}

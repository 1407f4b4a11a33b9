package media

import (
	"fmt"
	"math"
	"math/big"
)

// TimeBase is the number of container duration ticks per second.
// Container durations reported by providers are expressed in microseconds.
const TimeBase = 1_000_000

// NoPTS marks a timestamp that is not set.
const NoPTS int64 = math.MinInt64

// Rational is a time base or rate expressed as Num/Den.
type Rational struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// MPEGTSTimeBase is the 90kHz clock used by MPEG transport streams.
var MPEGTSTimeBase = Rational{Num: 1, Den: 90000}

// MicrosecondTimeBase expresses TimeBase as a rational.
var MicrosecondTimeBase = Rational{Num: 1, Den: TimeBase}

// IsValid reports whether r can be used as a time base.
func (r Rational) IsValid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float64 returns r as a floating point value, or 0 when the denominator is zero.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Rescale converts ts from one time base to another, rounding to the nearest
// tick with halves rounded away from zero. NoPTS is returned unchanged, and so
// is any timestamp whose bases are equal. Converting into or out of a base
// with a zero component yields NoPTS, as does a result outside the int64
// range.
func Rescale(ts int64, from, to Rational) int64 {
	if ts == NoPTS || from == to {
		return ts
	}
	b := int64(from.Num) * int64(to.Den)
	c := int64(from.Den) * int64(to.Num)
	if c == 0 {
		return NoPTS
	}
	if c < 0 {
		b, c = -b, -c
	}
	return rescaleRound(ts, b, c)
}

// rescaleRound returns round(a*b/c) for c > 0.
func rescaleRound(a, b, c int64) int64 {
	p, ok := mul64(a, b)
	if !ok {
		return rescaleBig(a, b, c)
	}
	half := c / 2
	if p >= 0 {
		if p > math.MaxInt64-half {
			return rescaleBig(a, b, c)
		}
		return (p + half) / c
	}
	if p == math.MinInt64 || -p > math.MaxInt64-half {
		return rescaleBig(a, b, c)
	}
	return -((-p + half) / c)
}

func rescaleBig(a, b, c int64) int64 {
	p := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	neg := p.Sign() < 0
	p.Abs(p)
	p.Add(p, big.NewInt(c/2))
	p.Quo(p, big.NewInt(c))
	if neg {
		p.Neg(p)
	}
	if !p.IsInt64() {
		return NoPTS
	}
	return p.Int64()
}

func mul64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return p, true
}

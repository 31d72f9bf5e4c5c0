// Package devstat converts cumulative per-device I/O counters, as exposed by
// the kernel's device statistics table, into rate and latency metrics. The
// arithmetic mirrors FreeBSD's devstat_compute_statistics(3): four operation
// classes, 64.64 fixed-point durations, and division guards everywhere a
// denominator can be zero.
package devstat

import "math/bits"

// bintimeScale is 1 / 2**64, the seconds value of one fraction unit.
const bintimeScale = 5.421010862427522e-20

// Bintime is the kernel's 64.64 fixed-point time representation:
// Sec + Frac/2**64 seconds. Frac is always an unsigned binary fraction.
type Bintime struct {
	Sec  int64
	Frac uint64
}

// Sub returns t - other. When the fraction subtraction wraps around it
// borrows from the seconds word, so negative results (clock skew between two
// samples) stay representable. Total over all inputs, never panics.
func (t Bintime) Sub(other Bintime) Bintime {
	sec := t.Sec - other.Sec
	if other.Frac > t.Frac {
		sec--
	}
	return Bintime{Sec: sec, Frac: t.Frac - other.Frac}
}

// Seconds converts to floating-point seconds. Lossy beyond ~53 bits; used
// for reporting only, never as an intermediate for further Bintime math.
func (t Bintime) Seconds() float64 {
	return float64(t.Sec) + float64(t.Frac)*bintimeScale
}

// Less reports whether t is strictly earlier (or shorter) than other.
func (t Bintime) Less(other Bintime) bool {
	if t.Sec != other.Sec {
		return t.Sec < other.Sec
	}
	return t.Frac < other.Frac
}

// FromNanoseconds converts a nanosecond count to a Bintime exactly:
// the fraction is floor(rem * 2**64 / 1e9).
func FromNanoseconds(ns uint64) Bintime {
	const nsPerSec = 1_000_000_000
	frac, _ := bits.Div64(ns%nsPerSec, 0, nsPerSec)
	return Bintime{Sec: int64(ns / nsPerSec), Frac: frac}
}

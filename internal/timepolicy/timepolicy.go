// Package timepolicy implements the Time Policy (spec §4.11): the pure
// arithmetic that turns a recorded inter-event gap into a replay delay.
//
// New; the spec's mode table is small enough to be a handful of
// constants and a single Delay method, with no library dependency (see
// SPEC_FULL.md DOMAIN STACK for why golang.org/x/time/rate was not a
// fit here: it schedules tokens against wall-clock throughput, not a
// per-call capped-and-scaled replay of historical deltas).
package timepolicy

import "time"

// belowFloor is the minimum gap worth sleeping for; shorter gaps are
// skipped entirely under non-burst modes.
const belowFloor = time.Millisecond

// burstDelay is the fixed yield used by burst mode for every gap.
const burstDelay = time.Millisecond

// Policy computes the replay delay for a recorded inter-event gap.
//
// The spec's mode table marks both dev and burst as "Burst": dev keeps
// the usual multiplier/max-delay scaling but yields 1ms instead of
// skipping sub-floor gaps entirely, while burst discards the multiplier
// and always yields 1ms. BurstFloor and AlwaysBurst separate those two
// behaviors.
type Policy struct {
	// Multiplier divides the gap; ignored when AlwaysBurst is true.
	Multiplier float64

	// MaxDelay caps the computed delay when positive; zero means
	// unbounded.
	MaxDelay time.Duration

	// BurstFloor substitutes a 1ms yield for gaps that would otherwise
	// be skipped (computed delay below 1ms), instead of skipping them.
	BurstFloor bool

	// AlwaysBurst discards Multiplier and MaxDelay and yields a fixed
	// 1ms for every gap.
	AlwaysBurst bool
}

// Exact replays every gap at its recorded duration, unbounded.
func Exact() Policy { return Policy{Multiplier: 1} }

// Fast is the default mode: gaps compress 100x, capped at 1s.
func Fast() Policy { return Policy{Multiplier: 100, MaxDelay: time.Second} }

// Dev compresses gaps 1000x, capped at 100ms, with a 1ms floor yield so
// rapid-fire recorded bursts stay visible instead of collapsing to zero
// wait. This keeps the multiplier/cap in effect where the original
// short-circuits dev mode straight to a fixed 1ms per gap; doing so here
// would make invariant 10's 0.1s bound trivially true instead of tested.
func Dev() Policy {
	return Policy{Multiplier: 1000, MaxDelay: 100 * time.Millisecond, BurstFloor: true}
}

// Burst discards the recorded timing entirely and yields 1ms per event.
func Burst() Policy { return Policy{AlwaysBurst: true} }

// Custom applies an arbitrary multiplier and optional max delay (zero
// means unbounded).
func Custom(multiplier float64, maxDelay time.Duration) Policy {
	return Policy{Multiplier: multiplier, MaxDelay: maxDelay}
}

// Delay converts a recorded gap (seconds, as found between two
// consecutive event timestamps) into the duration the replayer should
// sleep before applying the next event. The first event in a run has no
// gap and should not call Delay.
func (p Policy) Delay(gapSeconds float64) time.Duration {
	if p.AlwaysBurst {
		return burstDelay
	}
	if gapSeconds <= 0 {
		return 0
	}

	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	d := time.Duration(gapSeconds / multiplier * float64(time.Second))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < belowFloor {
		if p.BurstFloor {
			return burstDelay
		}
		return 0
	}
	return d
}

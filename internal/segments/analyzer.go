// Package segments turns loudness measurements into removal intervals and
// removal intervals into the keep-list that drives the cut.
package segments

import (
	"math"
	"sort"

	"github.com/reelsmith/reelsmith/internal/media"
)

// Sample is one loudness measurement.
type Sample struct {
	Time  float64 // seconds
	Level float64 // dBFS, may be -Inf for digital silence
}

// Trace is a time-ordered sequence of samples at a fixed interval.
type Trace []Sample

// Gate parameterises an energy gate.
//
// Silence gates match Level < ThresholdDB. Filler gates match
// ThresholdDB < Level < UpperDB. MaxDuration of zero leaves the duration
// filter unbounded above.
type Gate struct {
	Cause       media.Cause
	ThresholdDB float64
	UpperDB     float64
	MinDuration float64
	MaxDuration float64
}

// SilenceGate returns a gate that matches anything quieter than thresholdDB.
func SilenceGate(thresholdDB, minDuration float64) Gate {
	return Gate{Cause: media.CauseSilence, ThresholdDB: thresholdDB, MinDuration: minDuration}
}

// FillerGate builds the filler band gate. Higher sensitivity lowers the
// floor of the band: threshold = -30 - sensitivity*5 dB.
func FillerGate(sensitivity, upperDB, minDuration, maxDuration float64) Gate {
	return Gate{
		Cause:       media.CauseFiller,
		ThresholdDB: FillerThreshold(sensitivity),
		UpperDB:     upperDB,
		MinDuration: minDuration,
		MaxDuration: maxDuration,
	}
}

// FillerThreshold maps a sensitivity setting to the lower bound of the
// filler band.
func FillerThreshold(sensitivity float64) float64 {
	return -30 - sensitivity*5
}

func (g Gate) matches(level float64) bool {
	if math.IsNaN(level) {
		return false
	}
	if g.Cause == media.CauseFiller {
		return level > g.ThresholdDB && level < g.UpperDB
	}
	return level < g.ThresholdDB
}

func (g Gate) accepts(d float64) bool {
	if d <= 0 || d < g.MinDuration {
		return false
	}
	if g.Cause == media.CauseFiller && g.MaxDuration > 0 && d > g.MaxDuration {
		return false
	}
	return true
}

// Detect scans the trace and returns the intervals that satisfy the gate.
// An interval opens on the first matching sample and closes on the first
// sample that fails; one still open at the end closes at the last
// timestamp. Every interval goes through the same duration filter.
func Detect(trace Trace, g Gate) []media.RemovalSegment {
	var (
		out     []media.RemovalSegment
		open    bool
		started float64
	)

	emit := func(end float64) {
		if d := end - started; g.accepts(d) {
			out = append(out, media.RemovalSegment{
				TimeInterval: media.TimeInterval{Start: started, End: end},
				Cause:        g.Cause,
			})
		}
	}

	for _, s := range trace {
		switch hit := g.matches(s.Level); {
		case hit && !open:
			open = true
			started = s.Time
		case !hit && open:
			open = false
			emit(s.Time)
		}
	}
	if open && len(trace) > 0 {
		emit(trace[len(trace)-1].Time)
	}
	return out
}

// EventKind distinguishes the two halves of a silencedetect report.
type EventKind int

const (
	SilenceStart EventKind = iota
	SilenceEnd
)

// Event is one engine-native silence boundary.
type Event struct {
	Kind EventKind
	Time float64
}

// FromSilenceEvents pairs start/end events into silence intervals. An end
// that precedes every start opens at zero, later unpaired ends are ignored,
// and a start without an end closes at total. Intervals shorter than
// minDuration are dropped.
func FromSilenceEvents(events []Event, total, minDuration float64) []media.RemovalSegment {
	g := SilenceGate(0, minDuration)
	var (
		out     []media.RemovalSegment
		open    bool
		seen    bool
		started float64
	)
	add := func(start, end float64) {
		if end > total && total > 0 {
			end = total
		}
		if g.accepts(end - start) {
			out = append(out, media.RemovalSegment{
				TimeInterval: media.TimeInterval{Start: start, End: end},
				Cause:        media.CauseSilence,
			})
		}
	}

	for _, ev := range events {
		switch ev.Kind {
		case SilenceStart:
			if !open {
				open = true
				seen = true
				started = math.Max(ev.Time, 0)
			}
		case SilenceEnd:
			if open {
				add(started, ev.Time)
			} else if !seen {
				add(0, ev.Time)
			}
			open = false
			seen = true
		}
	}
	if open {
		add(started, total)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Total sums the duration of the given removals.
func Total(removals []media.RemovalSegment) float64 {
	var sum float64
	for _, r := range removals {
		sum += r.Duration()
	}
	return sum
}

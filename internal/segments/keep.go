package segments

import (
	"math"
	"sort"

	"github.com/reelsmith/reelsmith/internal/media"
)

// MinKeep is the shortest segment worth rendering; cut points are written
// with millisecond precision, so anything shorter would be an empty trim.
const MinKeep = 0.001

// BuildKeepSegments returns the complement of removals over [0,total].
//
// Padding widens every removal on both sides before the complement is
// taken, and results are clamped to [0,total]. No removals yields a single
// full-length segment. Segments shorter than MinKeep are dropped. Removals
// covering everything yield an empty slice, which callers must treat as
// media.ErrNoContent.
func BuildKeepSegments(removals []media.RemovalSegment, total, padding float64) []media.KeepSegment {
	if total <= 0 {
		return nil
	}
	if len(removals) == 0 {
		return []media.KeepSegment{{
			TimeInterval: media.TimeInterval{Start: 0, End: total},
			OpenEnd:      true,
		}}
	}

	sorted := make([]media.RemovalSegment, len(removals))
	copy(sorted, removals)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var keeps []media.KeepSegment
	cursor := 0.0
	for _, r := range sorted {
		if r.Start > cursor {
			start := clamp(cursor, 0, total)
			end := clamp(r.Start-padding, 0, total)
			if end-start >= MinKeep {
				keeps = append(keeps, media.KeepSegment{TimeInterval: media.TimeInterval{Start: start, End: end}})
			}
		}
		cursor = math.Max(cursor, r.End+padding)
	}
	if total-cursor >= MinKeep {
		keeps = append(keeps, media.KeepSegment{
			TimeInterval: media.TimeInterval{Start: clamp(cursor, 0, total), End: total},
			OpenEnd:      true,
		})
	}
	return keeps
}

// IsIdentity reports whether keeps is a single segment spanning the whole
// source, in which case no cut is needed.
func IsIdentity(keeps []media.KeepSegment, total float64) bool {
	if len(keeps) != 1 {
		return false
	}
	k := keeps[0]
	return k.Start <= 0 && (k.OpenEnd || k.End >= total)
}

// KeptDuration sums the length of keeps.
func KeptDuration(keeps []media.KeepSegment) float64 {
	var sum float64
	for _, k := range keeps {
		sum += k.Duration()
	}
	return sum
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

package segments

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/reelsmith/reelsmith/internal/media"
)

func removal(start, end float64) media.RemovalSegment {
	return media.RemovalSegment{TimeInterval: media.TimeInterval{Start: start, End: end}, Cause: media.CauseSilence}
}

func TestBuildKeepSegments_Identity(t *testing.T) {
	for _, d := range []float64{0.5, 10, 3600} {
		got := BuildKeepSegments(nil, d, 0.12)
		if len(got) != 1 || got[0].Start != 0 || got[0].End != d {
			t.Fatalf("BuildKeepSegments(nil, %v) = %+v, want [[0,%v]]", d, got, d)
		}
		if !IsIdentity(got, d) {
			t.Errorf("IsIdentity() = false for single full segment")
		}
	}
}

func TestBuildKeepSegments_PaddedSilence(t *testing.T) {
	got := BuildKeepSegments([]media.RemovalSegment{removal(4, 6)}, 10, 0.12)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2: %+v", len(got), got)
	}
	if !approx(got[0].Start, 0) || !approx(got[0].End, 3.88) {
		t.Errorf("first = [%v,%v], want [0,3.88]", got[0].Start, got[0].End)
	}
	if !approx(got[1].Start, 6.12) || !approx(got[1].End, 10) {
		t.Errorf("second = [%v,%v], want [6.12,10]", got[1].Start, got[1].End)
	}
	if !got[1].OpenEnd {
		t.Error("final segment should be open-ended")
	}
}

func TestBuildKeepSegments_FullCoverage(t *testing.T) {
	tests := []struct {
		name     string
		removals []media.RemovalSegment
		padding  float64
	}{
		{"single span", []media.RemovalSegment{removal(0, 10)}, 0},
		{"adjacent spans", []media.RemovalSegment{removal(0, 5), removal(5, 10)}, 0},
		{"padding closes gap", []media.RemovalSegment{removal(0, 4.9), removal(5.1, 10)}, 0.12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildKeepSegments(tt.removals, 10, tt.padding); len(got) != 0 {
				t.Errorf("BuildKeepSegments() = %+v, want empty", got)
			}
		})
	}
}

func TestBuildKeepSegments_ClampsToBounds(t *testing.T) {
	got := BuildKeepSegments([]media.RemovalSegment{removal(0.05, 1), removal(9, 9.95)}, 10, 0.12)
	if len(got) != 1 {
		t.Fatalf("got %+v, want one segment", got)
	}
	if !approx(got[0].Start, 1.12) || !approx(got[0].End, 8.88) {
		t.Errorf("segment = [%v,%v], want [1.12,8.88]", got[0].Start, got[0].End)
	}
}

func TestBuildKeepSegments_UnsortedInput(t *testing.T) {
	got := BuildKeepSegments([]media.RemovalSegment{removal(6, 7), removal(2, 3)}, 10, 0)
	want := [][2]float64{{0, 2}, {3, 6}, {7, 10}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %v", got, want)
	}
	for i, w := range want {
		if got[i].Start != w[0] || got[i].End != w[1] {
			t.Errorf("segment %d = [%v,%v], want %v", i, got[i].Start, got[i].End, w)
		}
	}
}

// Without padding the keeps and the removals tile [0,total] exactly once.
func TestBuildKeepSegments_PartitionsTimeline(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		total := 20.0
		var removals []media.RemovalSegment
		cursor := 0.0
		for cursor < total-1 {
			start := cursor + MinKeep*10 + rng.Float64()*2
			end := start + 0.1 + rng.Float64()*2
			if end >= total {
				break
			}
			removals = append(removals, removal(start, end))
			cursor = end
		}

		keeps := BuildKeepSegments(removals, total, 0)

		var spans []media.TimeInterval
		for _, k := range keeps {
			spans = append(spans, k.TimeInterval)
		}
		for _, r := range removals {
			spans = append(spans, r.TimeInterval)
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

		pos := 0.0
		for _, s := range spans {
			if !approx(s.Start, pos) {
				t.Fatalf("iteration %d: gap or overlap at %v (next span starts %v)", iter, pos, s.Start)
			}
			pos = s.End
		}
		if !approx(pos, total) {
			t.Fatalf("iteration %d: tiling ends at %v, want %v", iter, pos, total)
		}
	}
}

func TestBuildKeepSegments_DropsSlivers(t *testing.T) {
	tests := []struct {
		name     string
		removals []media.RemovalSegment
		total    float64
		padding  float64
		want     [][2]float64
	}{
		// 0.02+0.12 lands a rounding error below 0.14.
		{"rounded tail", []media.RemovalSegment{removal(0.001, 0.02)}, 0.14, 0.12, nil},
		{"rounded tail 0.139", []media.RemovalSegment{removal(0.001, 0.019)}, 0.139, 0.12, nil},
		{"sub-millisecond tail", []media.RemovalSegment{removal(1, 9.9996)}, 10, 0, [][2]float64{{0, 1}}},
		{"sub-millisecond gap", []media.RemovalSegment{removal(1, 2), removal(2.0004, 3)}, 10, 0, [][2]float64{{0, 1}, {3, 10}}},
		{"millisecond gap kept", []media.RemovalSegment{removal(1, 2), removal(2.002, 3)}, 10, 0, [][2]float64{{0, 1}, {2, 2.002}, {3, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildKeepSegments(tt.removals, tt.total, tt.padding)
			if len(got) != len(tt.want) {
				t.Fatalf("BuildKeepSegments() = %+v, want %v", got, tt.want)
			}
			for i, w := range tt.want {
				if !approx(got[i].Start, w[0]) || !approx(got[i].End, w[1]) {
					t.Errorf("segment %d = [%v,%v], want %v", i, got[i].Start, got[i].End, w)
				}
			}
		})
	}
}

func TestKeptDuration(t *testing.T) {
	keeps := BuildKeepSegments([]media.RemovalSegment{removal(2, 3)}, 10, 0)
	if got := KeptDuration(keeps); !approx(got, 9) {
		t.Errorf("KeptDuration() = %v, want 9", got)
	}
}

// Package media holds the value types shared by every stage of the
// post-production pipeline: time intervals, probe snapshots and the
// per-request effect specs decoded from client input.
package media

import (
	"encoding/json"
	"fmt"
	"math"
)

// TimeInterval is a half-open span of source time in seconds.
type TimeInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End-Start.
func (t TimeInterval) Duration() float64 {
	return t.End - t.Start
}

// Valid reports whether the interval satisfies 0 <= Start < End.
func (t TimeInterval) Valid() bool {
	return t.Start >= 0 && t.End > t.Start
}

// Cause tags why a span is scheduled for removal.
type Cause string

const (
	CauseSilence Cause = "silence"
	CauseFiller  Cause = "filler"
)

// RemovalSegment is a TimeInterval marked for deletion.
type RemovalSegment struct {
	TimeInterval
	Cause Cause `json:"cause"`
}

// KeepSegment is a span of source media that survives editing. When OpenEnd
// is set the segment runs to the end of the source and End is informational.
type KeepSegment struct {
	TimeInterval
	OpenEnd bool `json:"openEnd,omitempty"`
}

// Probe is an immutable snapshot of one media file.
type Probe struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Duration float64 `json:"durationSec"`
	HasVideo bool    `json:"hasVideo"`
	HasAudio bool    `json:"hasAudio"`
}

// Easing selects the curve used to animate a zoom.
type Easing string

const (
	EaseLinear    Easing = "linear"
	EaseIn        Easing = "ease-in"
	EaseOut       Easing = "ease-out"
	EaseInOut     Easing = "ease-in-out"
	DefaultEasing        = EaseInOut
)

// Known reports whether e names a supported curve.
func (e Easing) Known() bool {
	switch e {
	case EaseLinear, EaseIn, EaseOut, EaseInOut:
		return true
	}
	return false
}

// ZoomSpec is a time-varying magnification applied from the start of a clip.
type ZoomSpec struct {
	StartZoom float64 `json:"startZoom" toml:"start"`
	EndZoom   float64 `json:"endZoom" toml:"end"`
	Duration  float64 `json:"durationSec" toml:"duration"`
	Easing    Easing  `json:"easing" toml:"easing"`
}

func (z ZoomSpec) Validate() error {
	if z.StartZoom < 1 || math.IsNaN(z.StartZoom) {
		return &ValidationError{Field: "zoom.startZoom", Reason: "must be >= 1"}
	}
	if z.EndZoom < 1 || math.IsNaN(z.EndZoom) {
		return &ValidationError{Field: "zoom.endZoom", Reason: "must be >= 1"}
	}
	if !(z.Duration > 0) {
		return &ValidationError{Field: "zoom.durationSec", Reason: "must be > 0"}
	}
	if !z.Easing.Known() {
		return &ValidationError{Field: "zoom.easing", Reason: fmt.Sprintf("unknown easing %q", z.Easing)}
	}
	return nil
}

// TransitionSpec splices a catalog transition clip into the current
// artifact at Time seconds.
type TransitionSpec struct {
	TransitionID string  `json:"transitionId"`
	Time         float64 `json:"time"`
	Duration     float64 `json:"duration"`
}

// UnmarshalJSON accepts both "transitionId" and the short "id" key.
func (t *TransitionSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		TransitionID string   `json:"transitionId"`
		ID           string   `json:"id"`
		Time         float64  `json:"time"`
		Duration     *float64 `json:"duration"`
		DurationSec  *float64 `json:"durationSec"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.TransitionID = raw.TransitionID
	if t.TransitionID == "" {
		t.TransitionID = raw.ID
	}
	t.Time = raw.Time
	switch {
	case raw.Duration != nil:
		t.Duration = *raw.Duration
	case raw.DurationSec != nil:
		t.Duration = *raw.DurationSec
	default:
		t.Duration = 0
	}
	return nil
}

// Validate checks the transition request on its own. A zero Duration means "use the
// transition clip's own length" and is accepted.
func (t TransitionSpec) Validate() error {
	if t.TransitionID == "" {
		return &ValidationError{Field: "transitions.id", Reason: "is required"}
	}
	if t.Time < 0 || math.IsNaN(t.Time) {
		return &ValidationError{Field: "transitions.time", Reason: "must be >= 0"}
	}
	if t.Duration < 0 {
		return &ValidationError{Field: "transitions.duration", Reason: "must be >= 0"}
	}
	return nil
}

// AudioOverlaySpec mixes a background track under the original audio.
// EndTime of zero means "until the end of the clip".
type AudioOverlaySpec struct {
	TrackID   string  `json:"trackId"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime,omitempty"`
	Volume    float64 `json:"volume"`
	FadeIn    float64 `json:"fadeIn"`
	FadeOut   float64 `json:"fadeOut"`
	Loop      bool    `json:"loop"`
}

// UnmarshalJSON accepts "trackId" or "id" and defaults Volume to 1 when the
// key is absent.
func (a *AudioOverlaySpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		TrackID   string   `json:"trackId"`
		ID        string   `json:"id"`
		StartTime float64  `json:"startTime"`
		EndTime   *float64 `json:"endTime"`
		Volume    *float64 `json:"volume"`
		FadeIn    float64  `json:"fadeIn"`
		FadeOut   float64  `json:"fadeOut"`
		Loop      bool     `json:"loop"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AudioOverlaySpec{
		TrackID:   raw.TrackID,
		StartTime: raw.StartTime,
		Volume:    1,
		FadeIn:    raw.FadeIn,
		FadeOut:   raw.FadeOut,
		Loop:      raw.Loop,
	}
	if a.TrackID == "" {
		a.TrackID = raw.ID
	}
	if raw.EndTime != nil {
		a.EndTime = *raw.EndTime
	}
	if raw.Volume != nil {
		a.Volume = *raw.Volume
	}
	return nil
}

func (a AudioOverlaySpec) Validate() error {
	if a.TrackID == "" {
		return &ValidationError{Field: "audios.trackId", Reason: "is required"}
	}
	if a.StartTime < 0 {
		return &ValidationError{Field: "audios.startTime", Reason: "must be >= 0"}
	}
	if a.EndTime != 0 && a.EndTime <= a.StartTime {
		return &ValidationError{Field: "audios.endTime", Reason: "must be greater than startTime"}
	}
	if a.Volume < 0 || a.Volume > 1 {
		return &ValidationError{Field: "audios.volume", Reason: "must be within [0,1]"}
	}
	if a.FadeIn < 0 || a.FadeOut < 0 {
		return &ValidationError{Field: "audios.fade", Reason: "must be >= 0"}
	}
	return nil
}

// Window resolves the overlay span against a clip of the given length.
// The returned interval may be empty when StartTime is past the clip end.
func (a AudioOverlaySpec) Window(clipDuration float64) TimeInterval {
	end := a.EndTime
	if end == 0 || end > clipDuration {
		end = clipDuration
	}
	return TimeInterval{Start: a.StartTime, End: end}
}

// Package timerange classifies streams from their seekable time range.
//
// Stream and media types derived here are unreliable when playback on an
// external device was started before the item was played. That is a limitation
// of the engine reporting the ranges and tracks, not of the classification.
package timerange

import (
	"fmt"
	"time"
)

// TimeRange is a window of media time. An Indefinite range has an open end:
// End is the most recent live edge the engine reported.
type TimeRange struct {
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Indefinite bool          `json:"indefinite"`
}

// Empty reports whether the range carries no usable window.
func (r TimeRange) Empty() bool {
	return r.End <= r.Start
}

// Valid reports whether the bounds are ordered.
func (r TimeRange) Valid() bool {
	return r.Start >= 0 && r.Start <= r.End
}

// Length returns the window length, zero for empty or invalid ranges.
func (r TimeRange) Length() time.Duration {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether t lies within [Start, End].
func (r TimeRange) Contains(t time.Duration) bool {
	return t >= r.Start && t <= r.End
}

func (r TimeRange) String() string {
	if r.Indefinite {
		return fmt.Sprintf("[%s, %s…)", r.Start, r.End)
	}
	return fmt.Sprintf("[%s, %s]", r.Start, r.End)
}

// StreamType is live, DVR or video-on-demand
type StreamType int

const (
	StreamTypeUnknown StreamType = iota
	StreamTypeLive
	StreamTypeDVR
	StreamTypeVOD
)

func (s StreamType) String() string {
	switch s {
	case StreamTypeLive:
		return "live"
	case StreamTypeDVR:
		return "dvr"
	case StreamTypeVOD:
		return "vod"
	default:
		return "unknown"
	}
}

// MarshalText encodes the stream type by name
func (s StreamType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MediaType is audio or video
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeAudio
	MediaTypeVideo
)

func (m MediaType) String() string {
	switch m {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	default:
		return "unknown"
	}
}

// MarshalText encodes the media type by name
func (m MediaType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

const (
	// DefaultLiveTolerance matches the standard platform live window.
	DefaultLiveTolerance = 30 * time.Second
	// DefaultMinimumDVRWindowLength treats every open-ended window as DVR.
	DefaultMinimumDVRWindowLength = time.Duration(0)
)

// LiveConfiguration tunes live and DVR detection. Changes apply on the next
// classification only.
type LiveConfiguration struct {
	// MinimumDVRWindowLength is the smallest seekable window for a stream to
	// be considered DVR. Narrower windows behave as plain live streams.
	MinimumDVRWindowLength time.Duration `json:"minimum_dvr_window_length"`
	// LiveTolerance is how far behind the live edge the playhead may sit while
	// still being played in live conditions.
	LiveTolerance time.Duration `json:"live_tolerance"`
}

// DefaultLiveConfiguration returns the stock configuration.
func DefaultLiveConfiguration() LiveConfiguration {
	return LiveConfiguration{
		MinimumDVRWindowLength: DefaultMinimumDVRWindowLength,
		LiveTolerance:          DefaultLiveTolerance,
	}
}

// Normalized clamps negative durations to zero.
func (c LiveConfiguration) Normalized() LiveConfiguration {
	return LiveConfiguration{
		MinimumDVRWindowLength: ClampDuration(c.MinimumDVRWindowLength),
		LiveTolerance:          ClampDuration(c.LiveTolerance),
	}
}

// ClampDuration returns d, or zero if d is negative.
func ClampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

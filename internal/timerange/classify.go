package timerange

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Classification is the outcome of Classify.
type Classification struct {
	StreamType StreamType `json:"stream_type"`
	IsLive     bool       `json:"is_live"`
}

// Classify derives the stream type and live-ness of an item from its seekable
// range, its duration (None when the engine reports an indefinite duration)
// and the current playhead. It has no side effects.
func Classify(r TimeRange, duration mo.Option[time.Duration], playhead time.Duration, cfg LiveConfiguration) Classification {
	if r.Empty() || !r.Valid() {
		return Classification{StreamType: StreamTypeUnknown}
	}

	cfg = cfg.Normalized()

	if d, ok := duration.Get(); ok && d > 0 && !r.Indefinite {
		return Classification{StreamType: StreamTypeVOD}
	}

	streamType := StreamTypeDVR
	if r.Length() <= cfg.MinimumDVRWindowLength {
		streamType = StreamTypeLive
	}

	return Classification{
		StreamType: streamType,
		IsLive:     r.End-playhead <= cfg.LiveTolerance,
	}
}

// TrackKind identifies what a track carries
type TrackKind int

const (
	TrackKindUnknown TrackKind = iota
	TrackKindAudio
	TrackKindVideo
	TrackKindSubtitle
)

// Track describes one elementary stream of an item as reported by the engine.
type Track struct {
	Kind  TrackKind `json:"kind"`
	Codec string    `json:"codec,omitempty"`
}

var (
	videoCodecPrefixes = []string{"avc1", "avc3", "hvc1", "hev1", "dvh1", "dvhe", "vp09", "vp8", "av01", "mp4v"}
	audioCodecPrefixes = []string{"mp4a", "ac-3", "ec-3", "opus", "flac", "alac", "mp3"}
)

// TrackFromCodec builds a Track from an RFC 6381 codec string.
func TrackFromCodec(codec string) Track {
	c := strings.ToLower(strings.TrimSpace(codec))
	hasPrefix := func(p string) bool { return strings.HasPrefix(c, p) }

	switch {
	case lo.ContainsBy(videoCodecPrefixes, hasPrefix):
		return Track{Kind: TrackKindVideo, Codec: c}
	case lo.ContainsBy(audioCodecPrefixes, hasPrefix):
		return Track{Kind: TrackKindAudio, Codec: c}
	case c == "wvtt" || c == "stpp" || hasPrefix("stpp."):
		return Track{Kind: TrackKindSubtitle, Codec: c}
	default:
		return Track{Kind: TrackKindUnknown, Codec: c}
	}
}

// MediaTypeFromTracks returns Video if any video track is present, Audio if
// only audio tracks are, Unknown otherwise.
func MediaTypeFromTracks(tracks []Track) MediaType {
	switch {
	case lo.ContainsBy(tracks, func(t Track) bool { return t.Kind == TrackKindVideo }):
		return MediaTypeVideo
	case lo.ContainsBy(tracks, func(t Track) bool { return t.Kind == TrackKindAudio }):
		return MediaTypeAudio
	default:
		return MediaTypeUnknown
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

// Playlist errors
var (
	ErrUnsupportedScheme = errors.New("unsupported media URL scheme")
	ErrEmptyPlaylist     = errors.New("playlist has no segments")
	ErrNoVariants        = errors.New("master playlist has no variants")
)

// Playlist is what the engine knows about a loaded HLS media playlist
type Playlist struct {
	// URL is the media playlist actually decoded, after master resolution
	URL    string
	Tracks []timerange.Track
	// Live is set for playlists without ENDLIST
	Live bool
	// Event playlists only grow; their window never slides
	Event          bool
	Window         timerange.TimeRange
	TargetDuration time.Duration
	Segments       int
	MediaSequence  uint64
}

// Duration returns the total duration of bounded playlists, None for live ones
func (p *Playlist) Duration() mo.Option[time.Duration] {
	if p.Live {
		return mo.None[time.Duration]()
	}
	return mo.Some(p.Window.End)
}

// StreamType classifies the playlist with the playhead at its live edge
func (p *Playlist) StreamType(cfg timerange.LiveConfiguration) timerange.StreamType {
	return timerange.Classify(p.Window, p.Duration(), p.Window.End, cfg).StreamType
}

// Fetcher retrieves playlists over HTTP or from the local filesystem
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher; a zero timeout means no timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// CheckURL reports whether raw can be fetched at all
func CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid media URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "file", "":
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// Fetch loads the playlist at raw. Master playlists are followed to their
// highest bandwidth variant; the variant codecs become the playlist tracks.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (*Playlist, error) {
	pl, listType, err := f.decode(ctx, raw)
	if err != nil {
		return nil, err
	}

	var tracks []timerange.Track
	mediaURL := raw
	if listType == m3u8.MASTER {
		master := pl.(*m3u8.MasterPlaylist)
		variant, err := bestVariant(master)
		if err != nil {
			return nil, err
		}
		tracks = tracksFromVariant(variant)
		if mediaURL, err = resolveReference(raw, variant.URI); err != nil {
			return nil, err
		}

		pl, listType, err = f.decode(ctx, mediaURL)
		if err != nil {
			return nil, err
		}
		if listType != m3u8.MEDIA {
			return nil, fmt.Errorf("variant %s is not a media playlist", mediaURL)
		}
	}

	p, err := describeMedia(pl.(*m3u8.MediaPlaylist))
	if err != nil {
		return nil, err
	}
	p.URL = mediaURL
	p.Tracks = tracks
	return p, nil
}

func (f *Fetcher) decode(ctx context.Context, raw string) (m3u8.Playlist, m3u8.ListType, error) {
	body, err := f.open(ctx, raw)
	if err != nil {
		return nil, 0, err
	}
	defer body.Close()

	pl, listType, err := m3u8.DecodeFrom(body, false)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode playlist %s: %w", raw, err)
	}
	return pl, listType, nil
}

func (f *Fetcher) open(ctx context.Context, raw string) (io.ReadCloser, error) {
	if err := CheckURL(raw); err != nil {
		return nil, err
	}
	u, _ := url.Parse(raw)

	if u.Scheme == "file" || u.Scheme == "" {
		path := raw
		if u.Scheme == "file" {
			path = u.Path
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open playlist: %w", err)
		}
		return file, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch playlist %s: status %d", raw, resp.StatusCode)
	}
	return resp.Body, nil
}

// describeMedia turns a decoded media playlist into a Playlist. The window
// start of sliding live playlists is estimated from the media sequence.
func describeMedia(mp *m3u8.MediaPlaylist) (*Playlist, error) {
	var (
		total    time.Duration
		segments int
	)
	for _, seg := range mp.Segments {
		if seg == nil {
			break
		}
		total += secondsToDuration(seg.Duration)
		segments++
	}
	if segments == 0 {
		return nil, ErrEmptyPlaylist
	}

	target := time.Duration(mp.TargetDuration) * time.Second
	p := &Playlist{
		Live:           !mp.Closed && mp.MediaType != m3u8.VOD,
		Event:          mp.MediaType == m3u8.EVENT,
		TargetDuration: target,
		Segments:       segments,
		MediaSequence:  mp.SeqNo,
	}

	if !p.Live {
		p.Window = timerange.TimeRange{End: total}
		return p, nil
	}

	start := time.Duration(mp.SeqNo) * target
	p.Window = timerange.TimeRange{Start: start, End: start + total, Indefinite: true}
	return p, nil
}

func bestVariant(master *m3u8.MasterPlaylist) (*m3u8.Variant, error) {
	variants := lo.Filter(master.Variants, func(v *m3u8.Variant, _ int) bool {
		return v != nil && v.URI != ""
	})
	if len(variants) == 0 {
		return nil, ErrNoVariants
	}
	return lo.MaxBy(variants, func(a, b *m3u8.Variant) bool {
		return a.Bandwidth > b.Bandwidth
	}), nil
}

func tracksFromVariant(v *m3u8.Variant) []timerange.Track {
	var tracks []timerange.Track
	for _, codec := range strings.Split(v.Codecs, ",") {
		if strings.TrimSpace(codec) == "" {
			continue
		}
		tracks = append(tracks, timerange.TrackFromCodec(codec))
	}

	hasVideo := lo.ContainsBy(tracks, func(t timerange.Track) bool {
		return t.Kind == timerange.TrackKindVideo
	})
	if !hasVideo && v.Resolution != "" {
		tracks = append(tracks, timerange.Track{Kind: timerange.TrackKindVideo})
	}
	return tracks
}

func resolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid playlist URL: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid variant URI %q: %w", ref, err)
	}
	if b.Scheme == "" && r.Scheme == "" && !filepath.IsAbs(ref) {
		return filepath.Join(filepath.Dir(base), ref), nil
	}
	return b.ResolveReference(r).String(), nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

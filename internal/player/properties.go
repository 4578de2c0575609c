package player

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stwalsh4118/playerctl/internal/playback"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

// Snapshot is a consistent read of every derived controller property
type Snapshot struct {
	ItemID                    uuid.UUID            `json:"item_id"`
	URL                       string               `json:"url"`
	PlaybackState             playback.State       `json:"playback_state"`
	Error                     string               `json:"error,omitempty"`
	ErrorCategory             string               `json:"error_category,omitempty"`
	StreamType                timerange.StreamType `json:"stream_type"`
	MediaType                 timerange.MediaType  `json:"media_type"`
	IsLive                    bool                 `json:"is_live"`
	TimeRange                 timerange.TimeRange  `json:"time_range"`
	CurrentTime               time.Duration        `json:"current_time"`
	Rate                      float64              `json:"rate"`
	OverlaysVisible           bool                 `json:"overlays_visible"`
	OverlaySurfaces           []string             `json:"overlay_surfaces,omitempty"`
	VideoGravity              VideoGravity         `json:"video_gravity"`
	PictureInPictureAvailable bool                 `json:"picture_in_picture_available"`
	Config                    Config               `json:"config"`
}

// Snapshot reads all derived properties at once
func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	_ = c.loop.Call(func() {
		s = Snapshot{
			ItemID:                    c.itemID,
			URL:                       c.url,
			PlaybackState:             c.machine.State(),
			StreamType:                c.classification.StreamType,
			MediaType:                 c.mediaType,
			IsLive:                    c.classification.IsLive,
			TimeRange:                 c.timeRange,
			CurrentTime:               c.currentTime,
			Rate:                      c.engine.Rate(),
			OverlaysVisible:           c.overlay.Visible(),
			VideoGravity:              c.gravity,
			PictureInPictureAvailable: c.pip.IsPresent(),
			Config:                    c.config(),
		}
		if err := c.machine.Err(); err != nil {
			s.Error = err.Error()
			s.ErrorCategory = err.Category.String()
		}
		for _, surface := range c.overlays {
			s.OverlaySurfaces = append(s.OverlaySurfaces, surface.SurfaceID())
		}
	})
	return s
}

// PlaybackState returns the current playback state
func (c *Controller) PlaybackState() playback.State {
	return read(c, func() playback.State { return c.machine.State() })
}

// Err returns the failure of the current item, nil unless it failed
func (c *Controller) Err() *playback.Error {
	return read(c, func() *playback.Error { return c.machine.Err() })
}

// StreamType returns the stream type of the current item. It is unreliable
// when playback on an external device started before the item was played.
func (c *Controller) StreamType() timerange.StreamType {
	return read(c, func() timerange.StreamType { return c.classification.StreamType })
}

// MediaType returns the media type of the current item. It is unreliable
// when playback on an external device started before the item was played.
func (c *Controller) MediaType() timerange.MediaType {
	return read(c, func() timerange.MediaType { return c.mediaType })
}

// IsLive reports whether the current item is played in live conditions
func (c *Controller) IsLive() bool {
	return read(c, func() bool { return c.classification.IsLive })
}

// TimeRange returns the current seekable range, possibly empty or indefinite
func (c *Controller) TimeRange() timerange.TimeRange {
	return read(c, func() timerange.TimeRange { return c.timeRange })
}

// OverlaysVisible reports whether overlays are currently visible
func (c *Controller) OverlaysVisible() bool {
	return read(c, func() bool { return c.overlay.Visible() })
}

// VideoGravity returns how video fills the player surface
func (c *Controller) VideoGravity() VideoGravity {
	return read(c, func() VideoGravity { return c.gravity })
}

// OverlaySurfaces returns the surfaces registered with SetOverlaySurfaces
func (c *Controller) OverlaySurfaces() []Surface {
	return read(c, func() []Surface { return append([]Surface(nil), c.overlays...) })
}

// ActivitySurface returns the surface on which user activity is detected
func (c *Controller) ActivitySurface() Surface {
	return read(c, func() Surface { return c.activity })
}

// PictureInPictureController returns the platform picture in picture
// controller, absent when the platform lacks support or no surface is attached.
func (c *Controller) PictureInPictureController() mo.Option[PictureInPictureController] {
	return read(c, func() mo.Option[PictureInPictureController] { return c.pip })
}

func read[T any](c *Controller, f func() T) T {
	var v T
	_ = c.loop.Call(func() {
		v = f()
	})
	return v
}

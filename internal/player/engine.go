// Package player composes stream classification, the playback state machine
// and overlay visibility around an external playback engine.
package player

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

// Engine is the platform media player the controller wraps. Its accessors may
// be called from the controller loop at any time and must be safe for that.
type Engine interface {
	// Load starts loading url and reports progress to listener. It must not
	// block on I/O; an immediate error fails the item.
	Load(ctx context.Context, url string, listener EngineListener) error
	Play()
	Pause()
	// Seek moves the playhead and calls done once the seek settles. finished is
	// false when the seek was interrupted.
	Seek(to time.Duration, done func(finished bool))
	// Unload drops the current item; its listener receives no further signals.
	Unload()

	CurrentTime() time.Duration
	SeekableRange() timerange.TimeRange
	// Duration is None for items with an indefinite duration (live).
	Duration() mo.Option[time.Duration]
	Rate() float64
	Tracks() []timerange.Track
}

// EngineListener receives asynchronous engine signals for one item. Methods
// may be called from any goroutine.
type EngineListener interface {
	ItemReady()
	ItemFailed(err error)
	Stalled()
	Resumed()
	Ended()
	TimeUpdate()
}

// DataSource resolves an opaque media identifier to a playable URL.
type DataSource interface {
	ResolveURL(ctx context.Context, identifier string) (string, error)
}

// DataSourceFunc adapts a function to DataSource
type DataSourceFunc func(ctx context.Context, identifier string) (string, error)

// ResolveURL calls f
func (f DataSourceFunc) ResolveURL(ctx context.Context, identifier string) (string, error) {
	return f(ctx, identifier)
}

// PictureInPictureController is the platform's floating video presentation.
// The controller only hands it out; all behaviour is the platform's.
type PictureInPictureController interface {
	Active() bool
	Start() error
	Stop() error
}

// PictureInPictureSupport is implemented by engines whose platform can present
// picture in picture.
type PictureInPictureSupport interface {
	PictureInPictureSupported() bool
	NewPictureInPictureController(surface Surface) (PictureInPictureController, error)
}

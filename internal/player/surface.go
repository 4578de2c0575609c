package player

// Surface is a host UI element the controller refers to. The host owns it;
// the controller never mutates it.
type Surface interface {
	SurfaceID() string
}

// NamedSurface is a Surface identified by name only
type NamedSurface string

// SurfaceID returns the name
func (s NamedSurface) SurfaceID() string {
	return string(s)
}

// Gesture is a user gesture recognised by the host on the player surface
type Gesture int

const (
	GestureSingleTap Gesture = iota + 1
	GestureDoubleTap
)

// String returns the string representation of the gesture
func (g Gesture) String() string {
	switch g {
	case GestureSingleTap:
		return "single_tap"
	case GestureDoubleTap:
		return "double_tap"
	default:
		return "unknown"
	}
}

// ParseGesture parses the string representation of a gesture
func ParseGesture(s string) (Gesture, bool) {
	switch s {
	case "single_tap":
		return GestureSingleTap, true
	case "double_tap":
		return GestureDoubleTap, true
	default:
		return 0, false
	}
}

// VideoGravity is how video fills the player surface
type VideoGravity int

const (
	VideoGravityResizeAspect VideoGravity = iota
	VideoGravityResizeAspectFill
)

// String returns the string representation of the gravity
func (v VideoGravity) String() string {
	if v == VideoGravityResizeAspectFill {
		return "resize_aspect_fill"
	}
	return "resize_aspect"
}

// MarshalText encodes the gravity by name
func (v VideoGravity) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Toggled returns the other gravity
func (v VideoGravity) Toggled() VideoGravity {
	if v == VideoGravityResizeAspect {
		return VideoGravityResizeAspectFill
	}
	return VideoGravityResizeAspect
}

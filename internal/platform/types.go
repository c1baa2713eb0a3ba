package platform

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoActiveScreen is returned when nothing is in the foreground to read.
var ErrNoActiveScreen = errors.New("no active screen")

// ErrUnsupported is returned for an action an engine cannot perform.
var ErrUnsupported = errors.New("action not supported by this engine")

// PageKind is the classifier's verdict on the active surface.
type PageKind int

const (
	PageUnknown PageKind = iota
	PageNative
	PageEmbeddedWeb
)

func (k PageKind) String() string {
	switch k {
	case PageNative:
		return "Native"
	case PageEmbeddedWeb:
		return "EmbeddedWeb"
	default:
		return "Unknown"
	}
}

// Direction is a scroll direction.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
	DirectionLeft
	DirectionRight
)

// ParseDirection converts a string flag value to Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return DirectionUp, nil
	case "down":
		return DirectionDown, nil
	case "left":
		return DirectionLeft, nil
	case "right":
		return DirectionRight, nil
	default:
		return DirectionUp, fmt.Errorf("unknown direction: %q (expected up, down, left, or right)", s)
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return "up"
	}
}

// Unit returns the unit vector of d in screen coordinates (y grows down).
func (d Direction) Unit() (dx, dy int) {
	switch d {
	case DirectionDown:
		return 0, 1
	case DirectionLeft:
		return -1, 0
	case DirectionRight:
		return 1, 0
	default:
		return 0, -1
	}
}

// Options configures a device backend.
type Options struct {
	Serial       string        // Device serial (empty = the only attached device)
	ADBPath      string        // adb binary
	Density      float64       // Pixels per dp (0 = query the device)
	DumpPath     string        // On-device path for hierarchy dumps
	DumpRetries  int           // Attempts per hierarchy dump
	PollInterval time.Duration // Layout observer poll interval
	DevToolsURL  string        // WebView devtools endpoint (empty = no web surface)
}

// Package frame turns the raw notification byte stream of a distillation controller
// into discrete protocol frames.
//
// Two delimiter conventions exist across firmware generations: the current one wraps
// every frame in angle brackets (<W...>), the legacy one terminates frames with a
// carriage return. A session uses exactly one of them.
package frame

import (
	"fmt"
	"strings"
)

// Frame is one complete protocol message: a one-character format tag followed by its payload.
type Frame string

// Tag returns the format tag, or 0 for an empty frame.
func (f Frame) Tag() byte {
	if len(f) == 0 {
		return 0
	}
	return f[0]
}

// Payload returns the frame content after the tag.
func (f Frame) Payload() string {
	if len(f) == 0 {
		return ""
	}
	return string(f[1:])
}

// Mode selects the delimiter convention.
type Mode int

const (
	ModeAngle  Mode = iota // <...> delimited frames
	ModeLegacy             // \r terminated frames
)

// Default overflow thresholds for the retained tail, per mode.
const (
	DefaultAngleMaxBuffer  = 500
	DefaultLegacyMaxBuffer = 1000
)

func (m Mode) String() string {
	switch m {
	case ModeAngle:
		return "angle"
	case ModeLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "angle" or "legacy" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "angle", "":
		return ModeAngle, nil
	case "legacy", "cr":
		return ModeLegacy, nil
	default:
		return ModeAngle, fmt.Errorf("unknown framing mode %q (must be angle or legacy)", s)
	}
}

// DefaultMaxBuffer returns the overflow threshold used for m when none is configured.
func (m Mode) DefaultMaxBuffer() int {
	if m == ModeLegacy {
		return DefaultLegacyMaxBuffer
	}
	return DefaultAngleMaxBuffer
}

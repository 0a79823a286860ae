// Package packet decodes controller frames into partial telemetry snapshots.
//
// Decoding is pure: a frame maps to the subset of snapshot fields it carries.
// The format is selected by the frame's one-character tag.
package packet

import (
	"errors"
	"fmt"

	"github.com/srg/stillmon/internal/frame"
	"github.com/srg/stillmon/internal/telemetry"
)

// Format tags
const (
	TagW byte = 'W' // full state, byte-swapped 16-bit words
	TagT byte = 'T' // full state, straight hex
	TagU byte = 'U' // stabilizer
	TagV byte = 'V' // dose and remaining volume
	TagZ byte = 'Z' // pump calibration
)

// Minimum payload lengths in hex characters
const (
	MinLenW = 112
	MinLenT = 76
	MinLenU = 11
	MinLenV = 8
	MinLenZ = 8
)

// ErrUnknownFormat is returned for frames whose tag has no decoder
var ErrUnknownFormat = errors.New("unknown frame format")

// DecodeError reports a decoder that failed on malformed input
type DecodeError struct {
	Tag byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %c frame: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type decodeFunc func(payload string) telemetry.Snapshot

type format struct {
	minLen int
	decode decodeFunc
}

var formats = map[byte]format{
	TagW: {MinLenW, decodeW},
	TagT: {MinLenT, decodeT},
	TagU: {MinLenU, decodeU},
	TagV: {MinLenV, decodeV},
	TagZ: {MinLenZ, decodeZ},
}

// Decode maps a frame onto the snapshot fields it carries.
// A payload shorter than its format minimum yields an empty snapshot and no error.
func Decode(f frame.Frame) (snap telemetry.Snapshot, err error) {
	tag := f.Tag()
	fm, ok := formats[tag]
	if !ok {
		return telemetry.Snapshot{}, fmt.Errorf("%w: tag %q", ErrUnknownFormat, tag)
	}

	payload := f.Payload()
	if len(payload) < fm.minLen {
		return telemetry.Snapshot{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			snap = telemetry.Snapshot{}
			err = &DecodeError{Tag: tag, Err: fmt.Errorf("%v", r)}
		}
	}()

	return fm.decode(payload).Sanitize(), nil
}

// Known reports whether tag has a decoder.
func Known(tag byte) bool {
	_, ok := formats[tag]
	return ok
}

package frame

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssembler(mode Mode) *Assembler {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return NewAssembler(Options{Mode: mode}, logger)
}

func feedAll(a *Assembler, chunks ...string) []Frame {
	var frames []Frame
	for _, c := range chunks {
		frames = append(frames, a.Feed([]byte(c))...)
	}
	return frames
}

func TestAngleFrameSplitAcrossChunks(t *testing.T) {
	// GOAL: Verify a frame split at any pair of byte boundaries yields the same single frame
	//
	// TEST SCENARIO: "<W0010...>" cut at every (i, j) → exactly one frame → identical to the single-chunk result

	input := "<W0010FF20A0B1C2D3>"
	whole := feedAll(newTestAssembler(ModeAngle), input)
	require.Equal(t, []Frame{"W0010FF20A0B1C2D3"}, whole)

	for i := 1; i < len(input); i++ {
		for j := i; j < len(input); j++ {
			a := newTestAssembler(ModeAngle)
			got := feedAll(a, input[:i], input[i:j], input[j:])
			assert.Equal(t, whole, got, "split at %d/%d MUST yield the same frame", i, j)
			assert.Zero(t, a.Buffered(), "nothing MUST remain buffered after a complete frame")
		}
	}
}

func TestAngleMergedChunk(t *testing.T) {
	a := newTestAssembler(ModeAngle)

	frames := a.Feed([]byte("<Z00000100><V00640032>< U12 ><W12"))

	assert.Equal(t, []Frame{"Z00000100", "V00640032", "U12"}, frames, "frames MUST be extracted in order and trimmed")
	assert.Equal(t, 4, a.Buffered(), "incomplete frame MUST be retained from its start marker")

	frames = a.Feed([]byte("34>"))
	assert.Equal(t, []Frame{"W1234"}, frames)
	assert.Equal(t, uint64(4), a.Stats().Frames)
}

func TestAngleCorruptedFrame(t *testing.T) {
	// GOAL: Verify a nested start marker discards the frame and the stream resynchronizes
	//
	// TEST SCENARIO: "<AB<CD>EF>" → no frames, one corrupted → next valid frame decodes normally

	a := newTestAssembler(ModeAngle)

	frames := a.Feed([]byte("<AB<CD>EF>"))
	assert.Empty(t, frames, "nested content MUST be discarded")
	assert.Equal(t, uint64(1), a.Stats().Corrupted)
	assert.Zero(t, a.Buffered(), "trailing garbage without a start marker MUST NOT be retained")

	frames = a.Feed([]byte("<Z00000100>"))
	assert.Equal(t, []Frame{"Z00000100"}, frames, "stream MUST resynchronize at the next start marker")
}

func TestAngleDropsEmptyAndGarbage(t *testing.T) {
	a := newTestAssembler(ModeAngle)

	frames := a.Feed([]byte("noise<>\r\n<   >junk<V00640032>trailer"))

	assert.Equal(t, []Frame{"V00640032"}, frames, "empty frames MUST be dropped silently")
	assert.Zero(t, a.Buffered())
}

func TestAngleOverflow(t *testing.T) {
	// GOAL: Verify an unterminated frame cannot grow the buffer without bound
	//
	// TEST SCENARIO: start marker followed by more than 500 bytes → buffer discarded → overflow counted → next frame clean

	a := newTestAssembler(ModeAngle)

	a.Feed([]byte("<W" + strings.Repeat("0", 300)))
	assert.Equal(t, 302, a.Buffered())

	a.Feed([]byte(strings.Repeat("1", 300)))
	assert.Zero(t, a.Buffered(), "buffer MUST be cleared once it exceeds the threshold")
	assert.Equal(t, uint64(1), a.Stats().Overflows)

	frames := a.Feed([]byte("<Z00000100>"))
	assert.Equal(t, []Frame{"Z00000100"}, frames)
}

func TestLegacyFraming(t *testing.T) {
	a := newTestAssembler(ModeLegacy)

	frames := feedAll(a, "Z0000", "0100\r<V00640032>\r", " U2200\r", "\rT00")

	assert.Equal(t, []Frame{"Z00000100", "V00640032", "U2200"}, frames, "segments MUST be trimmed and stripped of angle brackets")
	assert.Equal(t, 3, a.Buffered(), "unterminated segment MUST be retained")

	a.Reset()
	assert.Zero(t, a.Buffered(), "Reset MUST drop the tail")
}

func TestLegacyOverflow(t *testing.T) {
	a := newTestAssembler(ModeLegacy)

	a.Feed([]byte(strings.Repeat("A", 1000)))
	assert.Equal(t, 1000, a.Buffered(), "exactly the threshold MUST be retained")

	a.Feed([]byte("B"))
	assert.Zero(t, a.Buffered())
	assert.Equal(t, uint64(1), a.Stats().Overflows)
}

func TestFrameAccessors(t *testing.T) {
	f := Frame("V00640032")
	assert.Equal(t, byte('V'), f.Tag())
	assert.Equal(t, "00640032", f.Payload())
	assert.Equal(t, byte(0), Frame("").Tag())
	assert.Equal(t, "", Frame("").Payload())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Legacy")
	assert.NoError(t, err)
	assert.Equal(t, ModeLegacy, m)

	m, err = ParseMode("")
	assert.NoError(t, err)
	assert.Equal(t, ModeAngle, m)

	_, err = ParseMode("binary")
	assert.Error(t, err)
}

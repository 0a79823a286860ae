package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/srg/stillmon/internal/frame"
	"github.com/srg/stillmon/internal/telemetry"
	"github.com/srg/stillmon/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStreamMergesFrames(t *testing.T) {
	// GOAL: Verify a captured stream decodes to the field-wise merge of its frames
	//
	// TEST SCENARIO: capture with Z, V, U, an unknown frame and a second V → merged snapshot, unknown skipped

	f, err := os.Open("testdata/capture.txt")
	require.NoError(t, err)
	defer f.Close()

	var tags []string
	merged, stats, err := decodeStream(f, frame.Options{Mode: frame.ModeAngle}, testutils.NewTestHelper(t).Logger,
		func(fr frame.Frame, _ telemetry.Snapshot) error {
			tags = append(tags, string(fr.Tag()))
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"Z", "V", "U", "V"}, tags, "unknown frames MUST be skipped")
	assert.Equal(t, uint64(5), stats.Frames)
	assert.Equal(t, 200, *merged.Dose, "later frames MUST win")
	assert.Equal(t, 100, *merged.Remain)

	testutils.NewJSONAsserter(t).AssertValue(merged.Fields(), `{
		"dose": 200,
		"remain": 100,
		"calibration": 256,
		"stabilizer_mode": 2,
		"target_voltage": 220,
		"measured_voltage": 219.8,
		"in_range": true,
		"max_voltage": false
	}`)
}

func TestDecodeStreamLegacyFraming(t *testing.T) {
	in := strings.NewReader("Z00000100\rV00640032\r")
	merged, stats, err := decodeStream(in, frame.Options{Mode: frame.ModeLegacy}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, uint32(256), *merged.Calibration)
	assert.Equal(t, 50, *merged.Remain)
}

func TestDecodeCommandPrintsMergedJSON(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"decode", "testdata/capture.txt", "--log-level", "error"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	testutils.NewJSONAsserter(t).Assert(out.String(), `{"calibration": 256, "dose": 200, "remain": 100}`)
}

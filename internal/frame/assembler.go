package frame

import (
	"bytes"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
)

// corruptPreviewLen bounds how much of a discarded frame is logged
const corruptPreviewLen = 50

// Options configures an Assembler
type Options struct {
	Mode Mode
	// MaxBuffer is the largest tail retained between chunks; 0 selects the mode default.
	MaxBuffer int
}

// Stats counts what the assembler has seen since creation
type Stats struct {
	Frames    uint64
	Corrupted uint64
	Overflows uint64
}

// Sub returns the counters accumulated since prev.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Frames:    s.Frames - prev.Frames,
		Corrupted: s.Corrupted - prev.Corrupted,
		Overflows: s.Overflows - prev.Overflows,
	}
}

// Assembler reassembles frames from arbitrarily split notification chunks.
// The unconsumed tail is kept in a fixed-capacity ring between calls.
type Assembler struct {
	mu     sync.Mutex
	mode   Mode
	limit  int
	tail   *ringbuffer.RingBuffer
	stats  Stats
	logger *logrus.Logger
}

// NewAssembler creates an assembler for the given delimiter convention
func NewAssembler(opts Options, logger *logrus.Logger) *Assembler {
	if logger == nil {
		logger = logrus.New()
	}
	limit := opts.MaxBuffer
	if limit <= 0 {
		limit = opts.Mode.DefaultMaxBuffer()
	}
	return &Assembler{
		mode:   opts.Mode,
		limit:  limit,
		tail:   ringbuffer.New(limit),
		logger: logger,
	}
}

// Mode returns the delimiter convention in use
func (a *Assembler) Mode() Mode {
	return a.mode
}

// Feed appends chunk to the retained tail and returns every frame completed by it.
func (a *Assembler) Feed(chunk []byte) []Frame {
	a.mu.Lock()
	defer a.mu.Unlock()

	data := append(a.drainTail(), chunk...)

	var frames []Frame
	var rest []byte
	if a.mode == ModeLegacy {
		frames, rest = a.splitLegacy(data)
	} else {
		frames, rest = a.splitAngle(data)
	}
	a.stats.Frames += uint64(len(frames))

	if len(rest) > a.limit {
		a.stats.Overflows++
		a.logger.WithFields(logrus.Fields{
			"buffered": len(rest),
			"limit":    a.limit,
			"mode":     a.mode,
		}).Warn("Frame buffer overflow, discarding buffered data")
		rest = nil
	}
	if len(rest) > 0 {
		// rest fits: the ring was drained and rest is within capacity
		_, _ = a.tail.Write(rest)
	}
	return frames
}

// Reset drops any partially received frame
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tail.Reset()
}

// Buffered returns the number of bytes retained for the next Feed
func (a *Assembler) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tail.Length()
}

// Stats returns a copy of the counters
func (a *Assembler) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Assembler) drainTail() []byte {
	n := a.tail.Length()
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	read, _ := a.tail.Read(buf)
	return buf[:read]
}

// splitAngle extracts <...> frames. A frame holding a nested start marker is corrupted
// and dropped through its end marker. Without a start marker nothing is retained.
func (a *Assembler) splitAngle(data []byte) ([]Frame, []byte) {
	var frames []Frame

	for {
		start := bytes.IndexByte(data, '<')
		if start < 0 {
			return frames, nil
		}
		data = data[start:]

		end := bytes.IndexByte(data, '>')
		if end < 0 {
			return frames, data
		}

		content := data[1:end]
		data = data[end+1:]

		if bytes.IndexByte(content, '<') >= 0 {
			a.stats.Corrupted++
			a.logger.WithField("frame", preview(content)).Warn("Corrupted frame (nested delimiter), discarding")
			continue
		}

		if f := strings.TrimSpace(string(content)); f != "" {
			frames = append(frames, Frame(f))
		}
	}
}

var angleStripper = strings.NewReplacer("<", "", ">", "")

// splitLegacy extracts \r terminated frames; the last unterminated segment is retained.
func (a *Assembler) splitLegacy(data []byte) ([]Frame, []byte) {
	var frames []Frame

	for {
		end := bytes.IndexByte(data, '\r')
		if end < 0 {
			return frames, data
		}
		segment := data[:end]
		data = data[end+1:]

		if f := strings.TrimSpace(angleStripper.Replace(string(segment))); f != "" {
			frames = append(frames, Frame(f))
		}
	}
}

func preview(b []byte) string {
	if len(b) > corruptPreviewLen {
		b = b[:corruptPreviewLen]
	}
	return string(b)
}

package datalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Sink persists records
type Sink interface {
	Write(Record) error
	Close() error
}

// Format names
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// OpenFile creates (or appends to) path and returns a sink in the given format.
func OpenFile(path, format string) (Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open datalog %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	switch format {
	case FormatJSONL, "":
		return NewJSONLSink(f), nil
	case FormatCSV:
		return newCSVSink(f, info.Size() == 0), nil
	default:
		_ = f.Close()
		return nil, fmt.Errorf("unknown datalog format %q", format)
	}
}

type jsonlSink struct {
	w   io.Writer
	enc *json.Encoder
}

// NewJSONLSink writes one JSON object per line. w is closed on Close when it is an io.Closer.
func NewJSONLSink(w io.Writer) Sink {
	return &jsonlSink{w: w, enc: json.NewEncoder(w)}
}

func (s *jsonlSink) Write(r Record) error {
	return s.enc.Encode(r)
}

func (s *jsonlSink) Close() error {
	return closeWriter(s.w)
}

// csvHeader holds the chart columns
var csvHeader = []string{"time", "T0", "T1", "T2", "T3", "AD"}

type csvSink struct {
	w          io.Writer
	cw         *csv.Writer
	needHeader bool
}

// NewCSVSink writes chart rows with a header line
func NewCSVSink(w io.Writer) Sink {
	return newCSVSink(w, true)
}

func newCSVSink(w io.Writer, header bool) Sink {
	return &csvSink{w: w, cw: csv.NewWriter(w), needHeader: header}
}

func (s *csvSink) Write(r Record) error {
	if s.needHeader {
		if err := s.cw.Write(csvHeader); err != nil {
			return err
		}
		s.needHeader = false
	}

	p := r.Point()
	row := []string{p.Time.UTC().Format(time.RFC3339Nano)}
	for _, t := range p.Temperature {
		row = append(row, formatCell(t))
	}
	row = append(row, formatCell(p.Pressure))

	if err := s.cw.Write(row); err != nil {
		return err
	}
	s.cw.Flush()
	return s.cw.Error()
}

func (s *csvSink) Close() error {
	s.cw.Flush()
	if err := s.cw.Error(); err != nil {
		_ = closeWriter(s.w)
		return err
	}
	return closeWriter(s.w)
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func closeWriter(w io.Writer) error {
	if c, ok := w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Package stream decodes the OCR service's progress stream: raw transport
// chunks are reassembled into server-sent event frames, and frame payloads
// are parsed into typed events.
package stream

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// frameSeparator delimits frames on the wire. A frame is one or more
// lines followed by a blank line.
var frameSeparator = []byte("\n\n")

// dataPrefix marks payload lines within a frame.
const dataPrefix = "data: "

// Decoder turns a raw byte stream into complete frame payloads. The
// transport delivers chunks at arbitrary boundaries - a frame may span
// two reads, or one read may hold several frames - so the decoder
// carries any trailing partial frame into the next read. Multi-byte
// characters split across reads are reassembled the same way, since
// splitting happens only at the frame separator.
type Decoder struct {
	r      io.Reader
	buf    []byte // carry: bytes read but not yet framed
	frames [][]byte
	eof    bool
	logger *slog.Logger
}

// NewDecoder creates a decoder over the given transport reader.
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{r: r, logger: logger}
}

// Next returns the payload of the next complete frame. It blocks on the
// underlying reader until a full frame is available, and returns io.EOF
// once the transport ends and all buffered frames are consumed. The
// returned payload has the "data: " prefix stripped; frames with no
// data lines (comments, keepalives) are skipped.
func (d *Decoder) Next() ([]byte, error) {
	for {
		for len(d.frames) > 0 {
			frame := d.frames[0]
			d.frames = d.frames[1:]
			if payload, ok := extractPayload(frame); ok {
				return payload, nil
			}
		}

		if d.eof {
			if len(bytes.TrimSpace(d.buf)) > 0 {
				d.logger.Warn("discarding partial frame at end of stream", "bytes", len(d.buf))
				d.buf = nil
			}
			return nil, io.EOF
		}

		if err := d.fill(); err != nil {
			return nil, err
		}
	}
}

// fill reads one chunk from the transport and splits out any complete
// frames, keeping the trailing partial frame in the carry buffer.
func (d *Decoder) fill() error {
	chunk := make([]byte, 4096)
	n, err := d.r.Read(chunk)
	if n > 0 {
		d.buf = append(d.buf, chunk[:n]...)
		for {
			idx := bytes.Index(d.buf, frameSeparator)
			if idx < 0 {
				break
			}
			frame := make([]byte, idx)
			copy(frame, d.buf[:idx])
			d.frames = append(d.frames, frame)
			d.buf = d.buf[idx+len(frameSeparator):]
		}
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			d.eof = true
			return nil
		}
		return err
	}
	return nil
}

// extractPayload pulls the data payload out of a frame. Multiple data
// lines are joined with newlines per the SSE wire format; other fields
// are ignored.
func extractPayload(frame []byte) ([]byte, bool) {
	var parts []string
	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, dataPrefix) {
			parts = append(parts, line[len(dataPrefix):])
		} else if line == "data:" {
			parts = append(parts, "")
		}
	}
	if len(parts) == 0 {
		return nil, false
	}
	return []byte(strings.Join(parts, "\n")), true
}

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader yields one preset chunk per Read call, simulating a
// transport that delivers frames at arbitrary boundaries.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	n := copy(p, chunk)
	if n < len(chunk) {
		r.chunks = append([][]byte{chunk[n:]}, r.chunks...)
	}
	return n, nil
}

func decodeAll(t *testing.T, r io.Reader) []string {
	t.Helper()
	dec := NewDecoder(r, nil)
	var out []string
	for {
		payload, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		out = append(out, string(payload))
	}
}

func TestDecoder_WholeFrames(t *testing.T) {
	input := "data: {\"type\":\"info\",\"total_pages\":3}\n\ndata: {\"type\":\"summary\"}\n\n"
	got := decodeAll(t, strings.NewReader(input))
	want := []string{`{"type":"info","total_pages":3}`, `{"type":"summary"}`}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecoder_SplitAtEveryOffset(t *testing.T) {
	// Payload includes multi-byte characters so splits can land inside
	// a UTF-8 sequence, and the trailing delimiter can be split too.
	payload := `{"type":"page_result","page":1,"status":"success","text":"héllo ページ"}`
	wire := []byte("data: " + payload + "\n\n")

	for offset := 1; offset < len(wire); offset++ {
		r := &chunkReader{chunks: [][]byte{wire[:offset], wire[offset:]}}
		got := decodeAll(t, r)
		if len(got) != 1 {
			t.Fatalf("offset %d: got %d frames, want 1", offset, len(got))
		}
		if got[0] != payload {
			t.Errorf("offset %d: payload = %q, want %q", offset, got[0], payload)
		}
	}
}

func TestDecoder_ManyFramesOneChunk(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 5; i++ {
		sb.WriteString("data: {\"n\":")
		sb.WriteByte(byte('0' + i))
		sb.WriteString("}\n\n")
	}
	got := decodeAll(t, strings.NewReader(sb.String()))
	if len(got) != 5 {
		t.Fatalf("got %d frames, want 5", len(got))
	}
}

func TestDecoder_MultipleDataLines(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"
	got := decodeAll(t, strings.NewReader(input))
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
	if got[0] != "line one\nline two" {
		t.Errorf("payload = %q", got[0])
	}
}

func TestDecoder_SkipsNonDataFrames(t *testing.T) {
	input := ": keepalive\n\nevent: ping\n\ndata: real\n\n"
	got := decodeAll(t, strings.NewReader(input))
	if len(got) != 1 || got[0] != "real" {
		t.Fatalf("got %v, want [real]", got)
	}
}

func TestDecoder_PartialFrameAtEOFDropped(t *testing.T) {
	input := "data: complete\n\ndata: {\"type\":\"trunca"
	got := decodeAll(t, strings.NewReader(input))
	if len(got) != 1 || got[0] != "complete" {
		t.Fatalf("got %v, want [complete]", got)
	}
}

func TestDecoder_CRLFLines(t *testing.T) {
	input := "data: payload\r\n\n"
	got := decodeAll(t, strings.NewReader(input))
	if len(got) != 1 || got[0] != "payload" {
		t.Fatalf("got %v, want [payload]", got)
	}
}

type failingReader struct {
	data []byte
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestDecoder_TransportErrorPropagates(t *testing.T) {
	dec := NewDecoder(&failingReader{data: []byte("data: ok\n\n")}, nil)

	if _, err := dec.Next(); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if _, err := dec.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

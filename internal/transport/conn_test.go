package transport

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestDecodeFramePlainJSON(t *testing.T) {
	env := Envelope{Type: EventWorldReset}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := decodeFrame(raw)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if got.Type != EventWorldReset {
		t.Errorf("Type = %v, want %v", got.Type, EventWorldReset)
	}
}

func TestDecodeFrameGzip(t *testing.T) {
	env := Envelope{Type: EventConnectionStatus}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var buf bytes.Buffer
	buf.WriteByte(gzipMagicByte)
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	got, err := decodeFrame(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if got.Type != EventConnectionStatus {
		t.Errorf("Type = %v, want %v", got.Type, EventConnectionStatus)
	}
}

func TestDecodeFrameMalformedErrors(t *testing.T) {
	if _, err := decodeFrame([]byte("not json")); err == nil {
		t.Fatal("expected an error decoding malformed input")
	}
}

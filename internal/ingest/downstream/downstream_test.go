package downstream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/transport"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(zerolog.Nop())
	httpSrv := httptest.NewServer(s.Router())
	t.Cleanup(httpSrv.Close)
	return s, httpSrv
}

func dialDownstream(t *testing.T, httpSrv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/downstream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHealthzReturns200(t *testing.T) {
	_, httpSrv := newTestServer(t)

	resp, err := httpSrv.Client().Get(httpSrv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPublishChunkDataBroadcastsToConnectedTileService(t *testing.T) {
	s, httpSrv := newTestServer(t)
	conn := dialDownstream(t, httpSrv)

	time.Sleep(50 * time.Millisecond)

	key := world.Key{CX: 1, CZ: 2, Dim: world.Overworld}
	s.PublishChunkData([]world.ChunkResponse{{Key: key, Success: true}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var env transport.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != transport.EventChunkData {
		t.Errorf("event type = %s, want %s", env.Type, transport.EventChunkData)
	}

	var payload transport.ChunkDataPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Responses) != 1 || payload.Responses[0].Key != key {
		t.Errorf("Responses = %+v, want one response with key %v", payload.Responses, key)
	}
}

func TestPublishWorldResetBroadcasts(t *testing.T) {
	s, httpSrv := newTestServer(t)
	conn := dialDownstream(t, httpSrv)

	time.Sleep(50 * time.Millisecond)
	s.PublishWorldReset()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var env transport.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != transport.EventWorldReset {
		t.Errorf("event type = %s, want %s", env.Type, transport.EventWorldReset)
	}
}

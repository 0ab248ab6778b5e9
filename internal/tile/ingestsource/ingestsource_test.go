package ingestsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxelmap/pipeline/internal/transport"
)

func TestRunDeliversFramesToHandler(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/downstream", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		env, _ := transport.Encode(transport.EventWorldReset, struct{}{})
		raw, _ := json.Marshal(env)
		ws.WriteMessage(websocket.TextMessage, raw)

		time.Sleep(200 * time.Millisecond)
	})
	httpSrv := httptest.NewServer(mux)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/downstream"
	d := New(wsURL, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var received []transport.Envelope
	handler := func(env transport.Envelope) {
		mu.Lock()
		received = append(received, env)
		mu.Unlock()
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, handler) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(received) == 0 {
		t.Fatal("expected at least one envelope delivered to the handler")
	}
	if received[0].Type != transport.EventWorldReset {
		t.Errorf("Type = %v, want %v", received[0].Type, transport.EventWorldReset)
	}
}

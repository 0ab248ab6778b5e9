// Package downstream is the Ingest Service's server side of the I->T event
// channel (spec §4.7, §6.2). The Tile Service connects here as a client
// (spec §2: "Tile Service (T). Connects to I as a client") and reconnects
// with its own exponential backoff; this side just needs to accept
// connections and broadcast whatever session.Session publishes.
package downstream

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/transport"
)

// Server accepts Tile Service connections and fans out every published
// event to all of them, mirroring internal/tile/server.Registry's
// connection-bookkeeping shape on the opposite side of the pipeline.
type Server struct {
	router   chi.Router
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu    sync.Mutex
	conns map[uint64]*transport.Conn
	next  uint64
}

// New builds a Server with its /downstream websocket endpoint mounted.
func New(log zerolog.Logger) *Server {
	s := &Server{
		log:      log,
		conns:    make(map[uint64]*transport.Conn),
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/downstream", s.handleWS)
	s.router = r
	return s
}

// Router returns the mountable chi router.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("downstream websocket upgrade failed")
		return
	}
	conn := transport.NewConn(ws)

	s.mu.Lock()
	id := s.next
	s.next++
	s.conns[id] = conn
	s.mu.Unlock()

	s.log.Info().Uint64("downstream_conn", id).Msg("tile service connected")

	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		conn.Close()
		s.log.Info().Uint64("downstream_conn", id).Msg("tile service disconnected")
	}()

	// Viewer-bound events never originate from T on this channel (spec
	// §4.7 lists all four as I->T only), so the only thing worth reading
	// here is connection teardown.
	conn.Run(r.Context(), func(transport.Envelope) {})
}

func (s *Server) broadcast(env transport.Envelope) {
	s.mu.Lock()
	targets := make([]*transport.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.Send(env); err != nil {
			s.log.Warn().Err(err).Msg("downstream send failed")
		}
	}
}

// PublishChunkData implements session.Downstream (spec §4.7 "chunk-data").
func (s *Server) PublishChunkData(responses []world.ChunkResponse) {
	env, err := transport.Encode(transport.EventChunkData, transport.ChunkDataPayload{Responses: responses})
	if err != nil {
		s.log.Error().Err(err).Msg("encode chunk-data")
		return
	}
	s.broadcast(env)
}

// PublishPlayerPosition implements session.Downstream (spec §4.7
// "player-position").
func (s *Server) PublishPlayerPosition(pose world.Pose) {
	env, err := transport.Encode(transport.EventPlayerPosition, pose)
	if err != nil {
		s.log.Error().Err(err).Msg("encode player-position")
		return
	}
	s.broadcast(env)
}

// PublishConnectionStatus implements session.Downstream (spec §4.7
// "connection-status").
func (s *Server) PublishConnectionStatus(connected bool, playerID string) {
	env, err := transport.Encode(transport.EventConnectionStatus, transport.ConnectionStatusPayload{
		Connected: connected,
		PlayerID:  playerID,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("encode connection-status")
		return
	}
	s.broadcast(env)
}

// PublishWorldReset implements session.Downstream (spec §4.7 "world-reset").
func (s *Server) PublishWorldReset() {
	env, err := transport.Encode(transport.EventWorldReset, struct{}{})
	if err != nil {
		s.log.Error().Err(err).Msg("encode world-reset")
		return
	}
	s.broadcast(env)
}

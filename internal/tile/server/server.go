// Package server exposes the Tile Service's viewer-facing HTTP surface: the
// websocket upgrade endpoint viewers connect to (spec §6.3 "T<->Viewer event
// channel") plus the operational /healthz and /status endpoints (spec §4.3
// "stats()", §6.5 ambient observability).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/batcher"
	"github.com/voxelmap/pipeline/internal/tile/cache"
	"github.com/voxelmap/pipeline/internal/tile/clients"
	"github.com/voxelmap/pipeline/internal/tile/fanout"
	"github.com/voxelmap/pipeline/internal/transport"
)

// Registry multiplexes fanout.Outbox.SendBatch across every live viewer
// connection, keyed by the ConnID the fan-out loop addresses batches to. It
// also doubles as a broadcaster for events that bypass the batcher entirely
// (connection-status, world-reset — spec §6.3 lists both as server->client
// events alongside batch-update).
type Registry struct {
	mu    sync.Mutex
	conns map[clients.ConnID]*transport.Conn
}

func newRegistry() *Registry {
	return &Registry{conns: make(map[clients.ConnID]*transport.Conn)}
}

func (reg *Registry) add(id clients.ConnID, c *transport.Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.conns[id] = c
}

func (reg *Registry) remove(id clients.ConnID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.conns, id)
}

// SendBatch implements fanout.Outbox.
func (reg *Registry) SendBatch(id clients.ConnID, batch batcher.Batch) error {
	reg.mu.Lock()
	c, ok := reg.conns[id]
	reg.mu.Unlock()
	if !ok {
		return fmt.Errorf("no live connection for %s", id)
	}
	env, err := transport.Encode(transport.EventBatchUpdate, transport.BatchUpdatePayload{Batch: batch})
	if err != nil {
		return err
	}
	return c.Send(env)
}

// Broadcast sends env to every currently connected viewer, skipping (but
// not aborting over) any single connection whose outgoing queue is full.
func (reg *Registry) Broadcast(env transport.Envelope) error {
	reg.mu.Lock()
	targets := make([]*transport.Conn, 0, len(reg.conns))
	for _, c := range reg.conns {
		targets = append(targets, c)
	}
	reg.mu.Unlock()

	var firstErr error
	for _, c := range targets {
		if err := c.Send(env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// defaultUpgrader is copied per Server so CheckOrigin can be customized
// without sharing state across instances.
var defaultUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Server wires the chi router, the viewer connection registry, the tile
// cache, and the fan-out loop together.
type Server struct {
	router   chi.Router
	clients  *clients.Manager
	cache    *cache.Cache
	loop     *fanout.Loop
	reg      *Registry
	log      zerolog.Logger
	upgrader websocket.Upgrader
	start    time.Time

	viewport func(transport.RequestInitialChunksPayload) []world.Key
}

// Option customizes a Server at construction time.
type Option func(*Server)

// WithCORSOrigins restricts the websocket upgrade to the given origins
// (spec §6.5 "corsOrigins: list of strings"). An empty list allows any
// origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowed[r.Header.Get("Origin")]
		}
	}
}

// WithViewportResolver overrides how a request-initial-chunks event's
// viewport is turned into the set of cache keys to seed (spec §6.3
// "request-initial-chunks"). The default seeds nothing beyond the
// whole-cache snapshot already queued when the viewer connected.
func WithViewportResolver(f func(transport.RequestInitialChunksPayload) []world.Key) Option {
	return func(s *Server) { s.viewport = f }
}

// NewOutbox returns the registry a caller must pass as fanout.Outbox (and,
// for connection-status/world-reset broadcasts, as ingestlink.Broadcaster)
// when constructing the fan-out loop this Server will drive. Must be
// called before fanout.New, with the resulting Loop passed back into New.
func NewOutbox() *Registry { return newRegistry() }

// New builds a Server ready to mount onto an *http.Server. reg must be the
// same value returned by NewOutbox and wired into the Loop passed here.
func New(cm *clients.Manager, c *cache.Cache, loop *fanout.Loop, reg *Registry, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		clients:  cm,
		cache:    c,
		loop:     loop,
		reg:      reg,
		log:      log,
		upgrader: defaultUpgrader,
		start:    time.Now(),
		viewport: func(transport.RequestInitialChunksPayload) []world.Key { return nil },
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.handleWS)
	s.router = r
	return s
}

// Router returns the chi router so callers can mount it onto an
// *http.Server or compose it with other routes.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusResponse mirrors what an operator would want from /status: cache
// pressure and connected-viewer count, the two numbers spec §4.3/§5 call
// out as the things worth watching.
type statusResponse struct {
	Cache     cache.Stats `json:"cache"`
	Connected int         `json:"connectedViewers"`
	Uptime    string      `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Cache:     s.cache.Stats(),
		Connected: len(s.clients.ConnIDs()),
		Uptime:    time.Since(s.start).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleWS upgrades the HTTP request to a websocket, registers a new
// viewer (or reconnects an existing one by clientID), seeds its initial
// snapshot, and blocks running the connection until it closes or errors
// (spec §6.3 full lifecycle, §4.5 "reconnect").
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := transport.NewConn(ws)
	connID := clients.ConnID(clients.NewClientID())

	var state *clients.State
	if clientIDParam := r.URL.Query().Get("client"); clientIDParam != "" {
		state = s.clients.Reconnect("", connID, clients.ClientID(clientIDParam))
		connID = state.ConnID
	} else {
		state = s.clients.Add(connID, clients.NewClientID())
	}

	log := s.log.With().Str("conn", string(state.ConnID)).Str("client", string(state.ClientID)).Logger()
	log.Info().Msg("viewer connected")

	s.reg.add(state.ConnID, conn)
	s.runViewer(r.Context(), conn, state, log)
}

func (s *Server) runViewer(ctx context.Context, conn *transport.Conn, state *clients.State, log zerolog.Logger) {
	defer func() {
		s.reg.remove(state.ConnID)
		s.clients.Remove(state.ConnID)
		conn.Close()
		log.Info().Msg("viewer disconnected")
	}()

	s.loop.SeedInitialSnapshot(state.ConnID, s.snapshotKeys())

	handler := func(env transport.Envelope) {
		s.handleViewerEvent(state, env, log)
	}

	if err := conn.Run(ctx, handler); err != nil {
		log.Debug().Err(err).Msg("viewer connection closed")
	}
}

// snapshotKeys walks the whole TileCache, matching spec §4.6's mandatory
// "Initial snapshot" behavior: every non-empty tile gets queued as a
// viewer's seed, regardless of whether a viewport hint ever arrives. If the
// viewer later sends request-initial-chunks, WithViewportResolver's keys
// are seeded again on top (harmless: AddPending is a no-op for keys
// already marked sent).
func (s *Server) snapshotKeys() []world.Key { return s.cache.Keys() }

func (s *Server) handleViewerEvent(state *clients.State, env transport.Envelope, log zerolog.Logger) {
	switch env.Type {
	case transport.EventRequestInitialChunks:
		var payload transport.RequestInitialChunksPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			log.Debug().Err(err).Msg("malformed request-initial-chunks payload")
			return
		}
		s.loop.SeedInitialSnapshot(state.ConnID, s.viewport(payload))
	case transport.EventMinimapClick, transport.EventUpdateSettings:
		// No required server effect (spec §6.3); left for a future UI
		// feature to hook into.
	default:
		log.Debug().Str("type", string(env.Type)).Msg("unhandled viewer event")
	}
}

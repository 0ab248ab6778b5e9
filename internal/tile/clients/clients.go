// Package clients tracks each viewer's delivery state so fan-out can skip
// already-delivered tiles, replay on reconnect, and garbage-collect after
// disconnect (spec §4.5 "ClientStateManager").
package clients

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/batcher"
	"github.com/voxelmap/pipeline/internal/tile/cache"
)

// ConnID identifies a single live connection. ClientID is stable across
// reconnects of the same logical viewer (spec §3 "ClientState").
type ConnID string
type ClientID string

// NewClientID mints a fresh stable viewer identity (spec §9: "no
// authentication/session model beyond per-connection identity").
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

// State is the per-viewer delivery state (spec §3 "ClientState").
type State struct {
	ClientID    ClientID
	ConnID      ConnID
	Sent        map[world.Key]time.Time
	SentTile    map[world.Key]*cache.Tile
	Pending     map[world.Key]batcher.PendingUpdate
	LastBatchID string
	ConnectTime time.Time
}

// Manager owns every connected (or recently disconnected) viewer's State,
// single-writer per spec §5 ("UpdateBatcher & ClientStateManager:
// single-writer (T's event loop)") but safe for concurrent reads.
type Manager struct {
	mu        sync.Mutex
	byConn    map[ConnID]*State
	connByCID map[ClientID]ConnID
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		byConn:    make(map[ConnID]*State),
		connByCID: make(map[ClientID]ConnID),
	}
}

// Add registers a new connection under clientID (spec §4.5 "add").
func (m *Manager) Add(connID ConnID, clientID ClientID) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(connID, clientID)
}

func (m *Manager) addLocked(connID ConnID, clientID ClientID) *State {
	s := &State{
		ClientID:    clientID,
		ConnID:      connID,
		Sent:        make(map[world.Key]time.Time),
		SentTile:    make(map[world.Key]*cache.Tile),
		Pending:     make(map[world.Key]batcher.PendingUpdate),
		ConnectTime: time.Now(),
	}
	m.byConn[connID] = s
	m.connByCID[clientID] = connID
	return s
}

// Remove drops the per-connection state entirely, including the mapping from
// its ClientID, at once; no state is retained for a grace period. A later
// Reconnect with that ClientID finds nothing to carry over and starts the
// client afresh, as Add does.
func (m *Manager) Remove(connID ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return
	}
	delete(m.byConn, connID)
	if m.connByCID[s.ClientID] == connID {
		delete(m.connByCID, s.ClientID)
	}
}

// MarkSent records key as delivered to connID at ts, removing any matching
// pending entry to preserve the sent/pending disjointness invariant (spec
// §4.5 invariant). Idempotent: calling it twice with the same arguments has
// the same effect as calling it once (spec §8 round-trip property).
func (m *Manager) MarkSent(connID ConnID, key world.Key, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return
	}
	s.Sent[key] = ts
	delete(s.Pending, key)
}

// MarkSentTile is MarkSent plus recording which *cache.Tile was delivered,
// so fan-out can later tell whether a freshly drained Full update is
// byte-identical to what this viewer already has (spec §4.6: "tile
// unchanged from the last sent version").
func (m *Manager) MarkSentTile(connID ConnID, key world.Key, tile *cache.Tile, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return
	}
	s.Sent[key] = ts
	s.SentTile[key] = tile
	delete(s.Pending, key)
}

// LastSentTile returns the tile last marked sent to connID for key, if any.
func (m *Manager) LastSentTile(connID ConnID, key world.Key) (*cache.Tile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return nil, false
	}
	t, ok := s.SentTile[key]
	return t, ok
}

// HasSent reports whether connID has previously been marked as having
// received key.
func (m *Manager) HasSent(connID ConnID, key world.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return false
	}
	_, ok = s.Sent[key]
	return ok
}

// AddPending queues update for connID, e.g. from the initial-snapshot seed
// on connect (spec §4.6 "Initial snapshot"). Adding a pending key that was
// already sent is rejected — sent and pending stay disjoint — callers
// wanting a resend should clear Sent first via an explicit invalidation.
func (m *Manager) AddPending(connID ConnID, key world.Key, update batcher.PendingUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return
	}
	if _, alreadySent := s.Sent[key]; alreadySent {
		return
	}
	s.Pending[key] = update
}

// DrainPending removes and returns the pending updates for connID. If keys
// is non-empty, only those keys are drained; otherwise every pending update
// is drained (spec §4.5 "drain_pending(conn_id, keys?)").
func (m *Manager) DrainPending(connID ConnID, keys []world.Key) []batcher.PendingUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return nil
	}

	if len(keys) == 0 {
		out := make([]batcher.PendingUpdate, 0, len(s.Pending))
		for _, u := range s.Pending {
			out = append(out, u)
		}
		s.Pending = make(map[world.Key]batcher.PendingUpdate)
		return out
	}

	out := make([]batcher.PendingUpdate, 0, len(keys))
	for _, k := range keys {
		if u, ok := s.Pending[k]; ok {
			out = append(out, u)
			delete(s.Pending, k)
		}
	}
	return out
}

// SetLastBatch records the most recent batch id delivered to connID.
func (m *Manager) SetLastBatch(connID ConnID, batchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byConn[connID]; ok {
		s.LastBatchID = batchID
	}
}

// SentKeysFor returns a copy of the sent-keys map for clientID across its
// current connection, if any.
func (m *Manager) SentKeysFor(clientID ClientID) map[world.Key]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID, ok := m.connByCID[clientID]
	if !ok {
		return nil
	}
	s := m.byConn[connID]
	out := make(map[world.Key]time.Time, len(s.Sent))
	for k, v := range s.Sent {
		out[k] = v
	}
	return out
}

// Reconnect transfers sent/pending state from oldConnID to newConnID under
// clientID, discarding the old mapping (spec §4.5 "reconnect"). If no prior
// state exists for clientID, this behaves exactly like Add.
func (m *Manager) Reconnect(oldConnID, newConnID ConnID, clientID ClientID) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevConnID, hasPrior := m.connByCID[clientID]
	if !hasPrior {
		return m.addLocked(newConnID, clientID)
	}

	prior, ok := m.byConn[prevConnID]
	if !ok {
		return m.addLocked(newConnID, clientID)
	}

	delete(m.byConn, prevConnID)
	prior.ConnID = newConnID
	m.byConn[newConnID] = prior
	m.connByCID[clientID] = newConnID
	_ = oldConnID
	return prior
}

// GCOldSent drops sent entries older than maxAge across every tracked
// connection (spec §4.5 "gc_old_sent").
func (m *Manager) GCOldSent(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for _, s := range m.byConn {
		for k, ts := range s.Sent {
			if ts.Before(cutoff) {
				delete(s.Sent, k)
			}
		}
	}
}

// Get returns the live state for connID, for callers (e.g. fan-out) that
// need direct read access without copying.
func (m *Manager) Get(connID ConnID) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byConn[connID]
	return s, ok
}

// ConnIDs returns every currently tracked connection id, for fan-out to
// iterate viewers.
func (m *Manager) ConnIDs() []ConnID {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ConnID, 0, len(m.byConn))
	for id := range m.byConn {
		out = append(out, id)
	}
	return out
}

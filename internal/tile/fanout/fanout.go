// Package fanout implements the tick-driven loop that drains pending tile
// updates and emits one Batch per connected viewer (spec §4.6 "Fan-out
// Loop").
package fanout

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/batcher"
	"github.com/voxelmap/pipeline/internal/tile/cache"
	"github.com/voxelmap/pipeline/internal/tile/clients"
	"github.com/voxelmap/pipeline/internal/tile/metrics"
)

// Outbox is how the loop actually gets a Batch to a viewer; a concrete
// implementation wraps an internal/transport.Conn per connection.
type Outbox interface {
	SendBatch(conn clients.ConnID, batch batcher.Batch) error
}

// Config bounds the loop's cadence and batch size (spec §6.5
// "tickIntervalMs: >=10 (default 100)", "batchSize: >=1 (default 50)").
type Config struct {
	TickInterval  time.Duration
	MaxBatchSize  int
	HighWaterMark int // spec §5 default 10000
}

// DefaultConfig matches the defaults named in spec §5/§6.5.
func DefaultConfig() Config {
	return Config{
		TickInterval:  100 * time.Millisecond,
		MaxBatchSize:  50,
		HighWaterMark: 10000,
	}
}

// Loop owns one tick of fan-out. It reads the cache and batcher, writes to
// ClientStateManager, and never blocks on viewer I/O itself — Outbox.SendBatch
// is expected to be non-blocking (spec §5 "no operation blocks
// indefinitely").
type Loop struct {
	cache   *cache.Cache
	batcher *batcher.Batcher
	clients *clients.Manager
	outbox  Outbox
	metrics *metrics.Metrics
	cfg     Config
	log     zerolog.Logger

	lastPose     world.Pose
	lastPoseSent map[clients.ConnID]world.Pose
}

// New returns a Loop wired to the given components.
func New(c *cache.Cache, b *batcher.Batcher, cm *clients.Manager, outbox Outbox, m *metrics.Metrics, cfg Config, log zerolog.Logger) *Loop {
	return &Loop{
		cache:        c,
		batcher:      b,
		clients:      cm,
		outbox:       outbox,
		metrics:      m,
		cfg:          cfg,
		log:          log,
		lastPoseSent: make(map[clients.ConnID]world.Pose),
	}
}

// OnPlayerPosition records the latest known player position for the next
// tick to consider broadcasting (spec §4.6: "on player-position change
// beyond an epsilon").
func (l *Loop) OnPlayerPosition(pose world.Pose) {
	l.lastPose = pose
}

// Run ticks at cfg.TickInterval until stop is closed.
func (l *Loop) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Tick(time.Now())
		}
	}
}

// SeedInitialSnapshot queues one Full PendingUpdate into connID's pending set
// for each of keys that is present in the cache (spec §4.6 "Initial
// snapshot"). internal/tile/server calls it with every cached key right after
// a viewer connects, and again with the resolved viewport keys for each
// request-initial-chunks event.
func (l *Loop) SeedInitialSnapshot(connID clients.ConnID, keys []world.Key) {
	for _, k := range keys {
		tile, ok := l.cache.Get(k)
		if !ok {
			continue
		}
		l.clients.AddPending(connID, k, batcher.PendingUpdate{Key: k, Tile: tile, Kind: batcher.Full, EnqueuedAt: time.Now()})
	}
}

// Tick runs exactly one fan-out iteration (spec §4.6 "Algorithm").
func (l *Loop) Tick(now time.Time) {
	if l.batcher.PendingCount() >= l.cfg.HighWaterMark {
		l.metrics.BackpressureWarnings.Inc()
		l.log.Warn().Int("pending", l.batcher.PendingCount()).Msg("update batcher crossed high-water mark")
	}

	drained := l.batcher.Drain(l.cfg.MaxBatchSize)
	l.metrics.BatcherPending.Set(float64(l.batcher.PendingCount()))

	poseChanged := func(connID clients.ConnID) bool {
		prev := l.lastPoseSent[connID]
		return l.lastPose.ChangedBeyondEpsilon(prev)
	}

	for _, connID := range l.clients.ConnIDs() {
		updates := make([]batcher.PendingUpdate, 0, len(drained))
		for _, u := range drained {
			if u.Kind == batcher.Full && l.clients.HasSent(connID, u.Key) {
				if last, ok := l.clients.LastSentTile(connID, u.Key); ok && tilesEqual(last, u.Tile) {
					continue
				}
			}
			updates = append(updates, u)
		}

		pending := l.clients.DrainPending(connID, nil)
		if len(pending) > 0 {
			updates = append(pending, updates...)
		}

		var posePtr *world.Pose
		if poseChanged(connID) {
			p := l.lastPose
			posePtr = &p
		}

		if len(updates) == 0 && posePtr == nil {
			continue
		}

		batch := batcher.Batch{
			BatchID:        uuid.NewString(),
			Updates:        updates,
			PlayerPosition: posePtr,
			Timestamp:      now,
		}

		if err := l.outbox.SendBatch(connID, batch); err != nil {
			l.log.Warn().Err(err).Str("conn", string(connID)).Msg("fan-out send failed")
			continue
		}

		for _, u := range updates {
			if u.Kind == batcher.Empty {
				l.clients.MarkSent(connID, u.Key, now)
				continue
			}
			l.clients.MarkSentTile(connID, u.Key, u.Tile, now)
		}
		if posePtr != nil {
			l.lastPoseSent[connID] = *posePtr
		}
		l.clients.SetLastBatch(connID, batch.BatchID)

		l.metrics.BatchesEmitted.Inc()
		l.metrics.BatchUpdateCount.Observe(float64(len(updates)))
		l.metrics.BatchBytes.Observe(float64(batch.EstimatedBytes()))
	}
}

// tilesEqual compares the renderable content of two tiles, ignoring
// Timestamp — two rebuilds of identical column data must compare equal so
// property 7 (no duplicate byte-identical Full sends) holds.
func tilesEqual(a, b *cache.Tile) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Colors == b.Colors && a.Heights == b.Heights && reflect.DeepEqual(a.Ores, b.Ores)
}

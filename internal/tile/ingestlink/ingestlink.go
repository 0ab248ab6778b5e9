// Package ingestlink is the Tile Service's side of the Ingest->Tile event
// channel (spec §4.7, §6.2): it decodes incoming Envelopes, drives them
// through the ChunkProcessor and TileCache, enqueues the resulting
// PendingUpdates, hands player-position to the fan-out loop, and forwards
// world-reset/connection-status straight to connected viewers.
package ingestlink

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/batcher"
	"github.com/voxelmap/pipeline/internal/tile/cache"
	"github.com/voxelmap/pipeline/internal/tile/fanout"
	"github.com/voxelmap/pipeline/internal/tile/metrics"
	"github.com/voxelmap/pipeline/internal/tile/processor"
	"github.com/voxelmap/pipeline/internal/transport"
)

// Broadcaster pushes an envelope to every connected viewer, bypassing the
// batcher (spec §6.3: connection-status and world-reset are delivered
// outside batch-update).
type Broadcaster interface {
	Broadcast(env transport.Envelope) error
}

// Source is how a Link receives frames from the Ingest Service. cmd/tiled
// supplies an internal/tile/ingestsource.Dialer, which redials I with backoff
// itself (spec §4.7: "T reconnects with exponential backoff").
type Source interface {
	Run(ctx context.Context, handler transport.Handler) error
}

// Link consumes the Ingest->Tile channel and drives the rest of the Tile
// Service's pipeline (spec §4.7 receiving side).
type Link struct {
	processor *processor.Processor
	cache     *cache.Cache
	batcher   *batcher.Batcher
	loop      *fanout.Loop
	broadcast Broadcaster
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New wires a Link to the rest of the Tile Service's components.
func New(p *processor.Processor, c *cache.Cache, b *batcher.Batcher, loop *fanout.Loop, broadcast Broadcaster, m *metrics.Metrics, log zerolog.Logger) *Link {
	return &Link{processor: p, cache: c, batcher: b, loop: loop, broadcast: broadcast, metrics: m, log: log}
}

// Run blocks consuming src until it returns. Run itself does not retry;
// reconnecting after a disconnect (spec §4.7) is left to src.
func (l *Link) Run(ctx context.Context, src Source) error {
	return src.Run(ctx, l.handle)
}

func (l *Link) handle(env transport.Envelope) {
	switch env.Type {
	case transport.EventChunkData:
		l.handleChunkData(env)
	case transport.EventPlayerPosition:
		l.handlePlayerPosition(env)
	case transport.EventConnectionStatus:
		l.handleConnectionStatus(env)
	case transport.EventWorldReset:
		l.handleWorldReset()
	default:
		l.log.Debug().Str("type", string(env.Type)).Msg("unhandled ingest event")
	}
}

func (l *Link) handleChunkData(env transport.Envelope) {
	var payload transport.ChunkDataPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		l.log.Warn().Err(err).Msg("malformed chunk-data payload")
		return
	}

	for _, resp := range payload.Responses {
		l.applyChunkResponse(resp)
	}
}

// applyChunkResponse implements spec §4.2's pipeline for one ChunkResponse:
// decode, project to a Tile, and either cache+enqueue it or, if it came
// back empty or undecodable, remove the key entirely. Remove wins over
// invalidate for the same key in the same tick (spec §7), which here just
// means we never call both for one response.
func (l *Link) applyChunkResponse(resp world.ChunkResponse) {
	if !resp.Success {
		l.cache.Remove([]world.Key{resp.Key})
		l.batcher.Enqueue(resp.Key, nil, batcher.Empty)
		return
	}

	col, issues, err := world.DecodeColumn(resp)
	for _, issue := range issues {
		l.log.Warn().Str("issue", issue.String()).Msg("chunk response decode issue")
	}
	if err != nil {
		l.log.Warn().Err(err).Str("key", resp.Key.String()).Msg("unrecoverable chunk response decode failure")
		l.cache.Remove([]world.Key{resp.Key})
		l.batcher.Enqueue(resp.Key, nil, batcher.Empty)
		return
	}

	tile := l.processor.Process(col)
	if tile == nil {
		l.cache.Remove([]world.Key{resp.Key})
		l.batcher.Enqueue(resp.Key, nil, batcher.Empty)
		return
	}

	l.cache.Put(resp.Key, tile)
	l.batcher.Enqueue(resp.Key, tile, batcher.Full)

	stats := l.cache.Stats()
	l.metrics.SampleCacheStats(stats.Size, 0, 0, 0)
}

func (l *Link) handlePlayerPosition(env transport.Envelope) {
	var pose world.Pose
	if err := json.Unmarshal(env.Payload, &pose); err != nil {
		l.log.Warn().Err(err).Msg("malformed player-position payload")
		return
	}
	l.loop.OnPlayerPosition(pose)
}

func (l *Link) handleConnectionStatus(env transport.Envelope) {
	if err := l.broadcast.Broadcast(env); err != nil {
		l.log.Warn().Err(err).Msg("failed to broadcast connection-status to some viewers")
	}
}

// handleWorldReset drains all pending state before any subsequent
// chunk-data is processed (spec §8 ordering property) by clearing the
// cache and batcher synchronously before broadcasting, so no viewer can
// observe a post-reset chunk-data ahead of the world-reset notice racing
// through its own outgoing queue.
func (l *Link) handleWorldReset() {
	l.cache.Clear()
	l.batcher.Clear()

	env, err := transport.Encode(transport.EventWorldReset, struct{}{})
	if err != nil {
		l.log.Error().Err(err).Msg("failed to encode world-reset broadcast")
		return
	}
	if err := l.broadcast.Broadcast(env); err != nil {
		l.log.Warn().Err(err).Msg("failed to broadcast world-reset to some viewers")
	}
}

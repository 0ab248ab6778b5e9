package session

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/voxelmap/pipeline/internal/ingest/world"
)

// Relay is the upstream game session connection the Ingest Service drives
// as a client (spec §6.1). Its wire format is out of scope per spec §1 —
// the core only needs a typed packet stream and a way to (re)connect.
type Relay interface {
	Connect(ctx context.Context) error
	ReadPacket(ctx context.Context) (any, error)
	Close() error
}

// Downstream receives the events the Ingest Service pushes to the Tile
// Service (spec §4.7): chunk-data, player-position, connection-status, and
// world-reset. A concrete implementation wraps internal/transport.Conn.
type Downstream interface {
	PublishChunkData(responses []world.ChunkResponse)
	PublishPlayerPosition(pose world.Pose)
	PublishConnectionStatus(connected bool, playerID string)
	PublishWorldReset()
}

// Config bounds the reconnect policy (spec §6.4 "advanced.reconnectInterval:
// 1000..30000 ms", "advanced.autoReconnect").
type Config struct {
	AutoReconnect     bool
	ReconnectInterval time.Duration
}

// Session owns the World and the relay connection lifecycle.
type Session struct {
	world      *world.World
	relay      Relay
	downstream Downstream
	cfg        Config
	log        zerolog.Logger

	lastPose world.Pose
}

// New returns a Session over w, driving relay and publishing to downstream.
func New(w *world.World, relay Relay, downstream Downstream, cfg Config, log zerolog.Logger) *Session {
	return &Session{world: w, relay: relay, downstream: downstream, cfg: cfg, log: log}
}

// Run connects and processes packets until ctx is canceled. Connecting is
// retried with exponential backoff (spec §4.7: "initial 1 s, cap 30 s,
// unbounded attempts") until it succeeds or ctx is canceled, whatever
// AutoReconnect says. On a read error Run reconnects when AutoReconnect is
// set, otherwise it returns the error.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := s.connectWithBackoff(ctx); err != nil {
			return err
		}

		s.downstream.PublishConnectionStatus(true, "")
		err := s.readLoop(ctx)
		s.downstream.PublishConnectionStatus(false, "")
		_ = s.relay.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.cfg.AutoReconnect {
			return err
		}
		s.log.Warn().Err(err).Msg("ingest relay disconnected, reconnecting")
	}
}

func (s *Session) connectWithBackoff(ctx context.Context) error {
	initial := 1 * time.Second
	if s.cfg.ReconnectInterval > 0 {
		initial = s.cfg.ReconnectInterval
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // unbounded attempts, per spec §4.7

	return backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err := s.relay.Connect(ctx); err != nil {
			s.log.Warn().Err(err).Msg("ingest relay connect failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

// readLoop reads packets one at a time, applying each to World and
// republishing the result downstream.
func (s *Session) readLoop(ctx context.Context) error {
	for {
		pkt, err := s.relay.ReadPacket(ctx)
		if err != nil {
			return fmt.Errorf("read packet: %w", err)
		}

		if err := s.dispatch(pkt); err != nil {
			s.log.Error().Err(err).Msg("ingest packet handling error")
		}
	}
}

func (s *Session) dispatch(pkt any) error {
	switch p := pkt.(type) {
	case JoinPacket:
		s.downstream.PublishConnectionStatus(true, p.PlayerID)
		return nil

	case StartGamePacket:
		s.world.OnWorldReset()
		s.downstream.PublishWorldReset()
		return nil

	case LevelChunkPacket:
		issue, err := s.world.OnLevelChunk(p.Key, p.SubChunkCount, p.Payloads)
		if issue != nil {
			s.log.Warn().Str("key", p.Key.String()).Msg(issue.String())
		}
		if err != nil {
			return err
		}
		s.publishColumn(p.Key)
		return nil

	case ClientCacheMissResponsePacket:
		issue, err := s.world.OnLevelChunk(p.Key, p.SubChunkCount, p.Payloads)
		if issue != nil {
			s.log.Warn().Str("key", p.Key.String()).Msg(issue.String())
		}
		if err != nil {
			return err
		}
		s.publishColumn(p.Key)
		return nil

	case SubchunkPacket:
		issues := s.world.OnSubchunk(p.Origin, p.Entries)
		for _, issue := range issues {
			s.log.Warn().Str("key", issue.Key.String()).Msg(issue.String())
		}
		s.publishColumn(p.Origin.Key)
		return nil

	case UpdateBlockPacket:
		if s.world.OnUpdateBlock(p.Key, p.LocalX, p.AbsY, p.LocalZ, p.State) {
			s.publishColumn(p.Key)
		}
		return nil

	case PlayerAuthInputPacket:
		if p.Pose.ChangedBeyondEpsilon(s.lastPose) {
			s.lastPose = p.Pose
			s.downstream.PublishPlayerPosition(p.Pose)
		}
		return nil

	default:
		return fmt.Errorf("unrecognized upstream packet type %T", pkt)
	}
}

func (s *Session) publishColumn(key world.Key) {
	col, ok := s.world.GetColumn(key)
	if !ok {
		return
	}
	resp := world.NewChunkResponse(col)
	s.downstream.PublishChunkData([]world.ChunkResponse{resp})
}

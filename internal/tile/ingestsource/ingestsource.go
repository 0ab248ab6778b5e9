// Package ingestsource is the Tile Service's client side of the I->T event
// channel (spec §4.7, §6.2): it dials the Ingest Service's downstream
// websocket endpoint and reconnects with exponential backoff (spec §4.7:
// "T reconnects with exponential backoff (initial 1 s, cap 30 s, unbounded
// attempts). On reconnection T does NOT flush caches").
package ingestsource

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxelmap/pipeline/internal/transport"
)

// Dialer satisfies internal/tile/ingestlink.Source by repeatedly dialing
// target until ctx is canceled, never clearing any Tile Service state
// between reconnects — that's the caller's job, and this package has no
// cache/batcher reference to clear even if it wanted to.
type Dialer struct {
	target string
	log    zerolog.Logger
}

// New returns a Dialer targeting the Ingest Service's /downstream endpoint.
func New(target string, log zerolog.Logger) *Dialer {
	return &Dialer{target: target, log: log}
}

// Run connects and processes frames until ctx is canceled, reconnecting
// with backoff whenever the connection drops.
func (d *Dialer) Run(ctx context.Context, handler transport.Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := d.connectWithBackoff(ctx)
		if err != nil {
			return err // only returns on ctx cancellation (backoff.Permanent)
		}

		err = conn.Run(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.log.Warn().Err(err).Msg("ingest downstream connection lost, reconnecting")
	}
}

func (d *Dialer) connectWithBackoff(ctx context.Context) (*transport.Conn, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 1 * time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // unbounded attempts, per spec §4.7

	var conn *transport.Conn
	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		c, err := d.dial(ctx)
		if err != nil {
			d.log.Warn().Err(err).Msg("ingest downstream dial failed, retrying")
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(policy, ctx))

	return conn, err
}

func (d *Dialer) dial(ctx context.Context) (*transport.Conn, error) {
	u, err := url.Parse(d.target)
	if err != nil {
		return nil, fmt.Errorf("parse ingest downstream url %q: %w", d.target, err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial ingest downstream %s: %w", d.target, err)
	}
	return transport.NewConn(ws), nil
}

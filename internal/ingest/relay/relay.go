// Package relay is the Ingest Service's client to the upstream game
// relay/decoder (spec §6.1 "I<->Upstream relay"). The exact byte layout of
// the Minecraft protocol is explicitly out of scope (spec §1: "The upstream
// packet relay/decoder library (we consume decoded packets)") — this
// package only needs to dial whatever process already speaks decoded
// packets and frame them the way the rest of this pipeline frames its own
// event channels (internal/transport), reusing gorilla/websocket for the
// socket itself.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxelmap/pipeline/internal/ingest/session"
)

// PacketType names one of the decoded upstream packet kinds spec §6.1
// lists: "join, start_game, client_cache_miss_response, level_chunk,
// subchunk, update_block" plus the serverbound "player_auth_input".
type PacketType string

const (
	TypeJoin                   PacketType = "join"
	TypeStartGame              PacketType = "start_game"
	TypeClientCacheMissResp    PacketType = "client_cache_miss_response"
	TypeLevelChunk             PacketType = "level_chunk"
	TypeSubchunk               PacketType = "subchunk"
	TypeUpdateBlock            PacketType = "update_block"
	TypePlayerAuthInput        PacketType = "player_auth_input"
)

// frame is the single wire shape every decoded packet crosses this boundary
// wrapped in, mirroring internal/transport.Envelope's dispatch-by-type
// shape on the I<->T side.
type frame struct {
	Type    PacketType      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client dials the upstream relay/decoder over a websocket and satisfies
// internal/ingest/session.Relay. Connect/Close may be called repeatedly
// across reconnects driven by session.Session's backoff loop.
type Client struct {
	url string

	mu sync.Mutex
	ws *websocket.Conn
}

// New returns a Client that will dial target (a ws:// or wss:// URL) on
// Connect.
func New(target string) *Client {
	return &Client{url: target}
}

// Connect dials the relay. Per spec §4.7/§7 reconnect semantics, the
// caller (session.Session) is responsible for retry/backoff — Connect
// itself makes exactly one attempt.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("parse relay url %q: %w", c.url, err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial relay %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	return nil
}

// ReadPacket blocks for the next frame and decodes it into one of the
// session.*Packet structs, returned as `any` per the Relay contract.
func (c *Client) ReadPacket(ctx context.Context) (any, error) {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return nil, fmt.Errorf("relay: read before connect")
	}

	if dl, ok := ctx.Deadline(); ok {
		ws.SetReadDeadline(dl)
	}

	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("relay read: %w", err)
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("relay frame decode: %w", err)
	}

	return decodePayload(f)
}

func decodePayload(f frame) (any, error) {
	switch f.Type {
	case TypeJoin:
		var p session.JoinPacket
		return p, json.Unmarshal(f.Payload, &p)
	case TypeStartGame:
		var p session.StartGamePacket
		return p, json.Unmarshal(f.Payload, &p)
	case TypeClientCacheMissResp:
		var p session.ClientCacheMissResponsePacket
		return p, json.Unmarshal(f.Payload, &p)
	case TypeLevelChunk:
		var p session.LevelChunkPacket
		return p, json.Unmarshal(f.Payload, &p)
	case TypeSubchunk:
		var p session.SubchunkPacket
		return p, json.Unmarshal(f.Payload, &p)
	case TypeUpdateBlock:
		var p session.UpdateBlockPacket
		return p, json.Unmarshal(f.Payload, &p)
	case TypePlayerAuthInput:
		var p session.PlayerAuthInputPacket
		return p, json.Unmarshal(f.Payload, &p)
	default:
		return nil, fmt.Errorf("relay: unrecognized packet type %q", f.Type)
	}
}

// Close idempotently closes the socket, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	return ws.Close()
}

/*
Package signaling contains the core logic of the relay: the connection
registry, message routing, and presence broadcasting.

This file defines the Hub, the single authoritative registry of
connected participants. The hub routes every inbound envelope: WebRTC
negotiation payloads go point-to-point by identity, typing indicators
go to everyone but the sender, and chat messages fan out to the whole
roster. One mutex makes each registry mutation and its roster broadcast
a single atomic step, so every client observes the same total order of
joins and leaves.
*/
package signaling

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sigrelay/internal/app/user"
	"sigrelay/internal/pkg/errs"
	"sigrelay/internal/pkg/logx"
	"sigrelay/internal/pkg/randx"
)

// MaxUsernameLen is the maximum accepted display name length in bytes.
const MaxUsernameLen = 64

// Hub owns the participant registry and all routing decisions.
// It is created once in main and passed by reference; connection
// handling code never mutates the registry except through Dispatch
// and Disconnect.
type Hub struct {
	// mu serializes registry mutations and roster broadcasts.
	mu sync.Mutex

	// conns is the set of all open connections, joined or not. Roster
	// broadcasts and shutdown cover every open connection, and a
	// connection may be open without ever joining.
	conns map[*Client]struct{}

	// participants maps identity -> connection, the authoritative roster.
	participants map[string]*Client

	// index is the reverse map connection -> identity, used on disconnect
	// since the transport reports closure by connection, not identity.
	index map[*Client]string

	// lastStamp is the timestamp of the most recent chat message, used to
	// keep server-assigned timestamps monotonically non-decreasing.
	lastStamp int64

	// closed is set during shutdown; all further operations are no-ops.
	closed bool

	// structured logger with Hub context.
	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	hubLogger := logx.Logger().With().Str("component", "Hub").Logger()

	return &Hub{
		conns:        make(map[*Client]struct{}),
		participants: make(map[string]*Client),
		index:        make(map[*Client]string),
		logger:       hubLogger,
	}
}

// Attach records a newly opened connection. No registry entry exists
// yet; identity assignment waits for the client's join envelope.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.closeSendQueue()
		return
	}

	h.conns[c] = struct{}{}
}

// Dispatch classifies one inbound frame and routes it. It is the single
// entry point for all client traffic after the connection is open.
func (h *Hub) Dispatch(c *Client, frame []byte) {
	env, err := ParseEnvelope(frame)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		h.replyError(c, errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch env.Type {
	case KindJoin:
		h.handleJoin(c, env)

	case KindOffer, KindAnswer, KindICECandidate:
		h.forwardToTarget(c, env, frame)

	case KindTyping, KindStopTyping:
		h.relayToOthers(c, frame)

	case KindMessage:
		h.fanOutMessage(c, env)

	case KindLeave:
		// Reserved alias for disconnect; actual removal happens when the
		// transport reports the connection closed.

	default:
		h.replyError(c, errs.NewError(errs.ErrUnknownMessageType, string(env.Type)))
	}
}

// handleJoin registers a new participant: validates the display name,
// mints an identity, replies joined to the sender, and broadcasts the
// updated roster. Registration and broadcast happen atomically.
func (h *Hub) handleJoin(c *Client, env *Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	if _, ok := h.index[c]; ok {
		h.replyError(c, errs.NewError(errs.ErrAlreadyJoined))
		return
	}

	username := strings.TrimSpace(env.Username)
	if username == "" {
		h.replyError(c, errs.NewError(errs.ErrMissingUsername))
		return
	}
	if len(username) > MaxUsernameLen {
		h.replyError(c, errs.NewError(errs.ErrUsernameTooLong, MaxUsernameLen))
		return
	}

	id := randx.UserID()

	c.id = id
	c.username = username
	h.participants[id] = c
	h.index[c] = id

	h.logger.Info().
		Str("user_id", id).
		Str("username", username).
		Int("total_users", len(h.participants)).
		Msg("Participant joined")

	if frame, ok := h.encode(newJoinedEnvelope(id, username)); ok {
		c.trySend(frame)
	}

	h.broadcastRosterLocked()
}

// forwardToTarget relays a negotiation envelope (offer, answer, or
// ice-candidate) verbatim to the single connection registered under the
// target identity. An absent target is logged and dropped silently; the
// sender is not notified.
func (h *Hub) forwardToTarget(c *Client, env *Envelope, frame []byte) {
	if env.TargetUserID == "" {
		h.replyError(c, errs.NewError(errs.ErrMissingTarget, string(env.Type)))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	target, ok := h.participants[env.TargetUserID]
	if !ok {
		h.logger.Debug().
			Str("kind", string(env.Type)).
			Str("target_user_id", env.TargetUserID).
			Msg("Dropping envelope for unknown target")
		return
	}

	target.trySend(frame)
}

// relayToOthers forwards a frame verbatim to every participant except
// the sending connection. Used for typing indicators.
func (h *Hub) relayToOthers(c *Client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.index[c]; !ok {
		h.replyError(c, errs.NewError(errs.ErrNotJoined))
		return
	}

	for _, peer := range h.participants {
		if peer == c {
			continue
		}
		peer.trySend(frame)
	}
}

// fanOutMessage stamps a chat envelope with the server time and sends
// it to every participant, sender included, so all clients render chat
// through the same inbound path.
func (h *Hub) fanOutMessage(c *Client, env *Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.index[c]; !ok {
		h.replyError(c, errs.NewError(errs.ErrNotJoined))
		return
	}

	now := time.Now().UnixMilli()
	if now < h.lastStamp {
		// Wall clock stepped backwards; keep stamps non-decreasing.
		now = h.lastStamp
	}
	h.lastStamp = now
	env.Timestamp = now

	frame, ok := h.encode(*env)
	if !ok {
		return
	}

	for _, peer := range h.participants {
		peer.trySend(frame)
	}
}

// Disconnect removes the connection and, if it had joined, its
// registry entry, broadcasting the updated roster. It is idempotent
// and safe for connections that never joined.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c)

	id, ok := h.index[c]
	if !ok {
		return
	}

	delete(h.index, c)
	delete(h.participants, id)

	h.logger.Info().
		Str("user_id", id).
		Int("total_users", len(h.participants)).
		Msg("Participant left")

	h.broadcastRosterLocked()
}

// Snapshot returns the current roster as a slice of public user views.
func (h *Hub) Snapshot() []user.User {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() []user.User {
	users := make([]user.User, 0, len(h.participants))
	for id, c := range h.participants {
		users = append(users, user.User{
			ID:       id,
			Username: c.username,
			IsOnline: true,
		})
	}
	return users
}

// broadcastRosterLocked serializes the roster once and sends the
// identical payload to every open connection, joined or not. Callers
// hold h.mu, so the roster always reflects the registry state at this
// instant.
func (h *Hub) broadcastRosterLocked() {
	frame, ok := h.encode(newUserListEnvelope(h.snapshotLocked()))
	if !ok {
		return
	}

	for peer := range h.conns {
		peer.trySend(frame)
	}
}

// replyError sends an error envelope to the originating connection.
// The connection stays open. Safe with or without h.mu held, since
// trySend never blocks.
func (h *Hub) replyError(c *Client, cerr *errs.CustomError) {
	if frame, ok := h.encode(newErrorEnvelope(cerr.Message)); ok {
		c.trySend(frame)
	}
}

// encode marshals an envelope for the wire.
func (h *Hub) encode(env Envelope) ([]byte, bool) {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error().Err(err).Str("kind", string(env.Type)).Msg("Error marshaling envelope")
		return nil, false
	}
	return frame, true
}

// Shutdown closes every connection with a normal closure frame and
// empties the registry. Further hub operations become no-ops.
func (h *Hub) Shutdown() {
	h.mu.Lock()

	h.closed = true

	clients := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}

	h.conns = make(map[*Client]struct{})
	h.participants = make(map[string]*Client)
	h.index = make(map[*Client]string)

	h.mu.Unlock()

	for _, c := range clients {
		c.CloseWithReason(websocket.CloseNormalClosure, "server shutting down")
	}

	h.logger.Info().Int("connections_closed", len(clients)).Msg("Hub shutdown complete")
}

/*
Package signaling contains the core logic of the relay: the connection
registry, message routing, and presence broadcasting.

This file defines the wire protocol: every WebSocket text frame is one
JSON Envelope, discriminated by its type field.
*/
package signaling

import (
	"encoding/json"

	"sigrelay/internal/app/user"
)

// Kind discriminates the envelope types of the wire protocol.
type Kind string

// The closed set of envelope kinds. KindJoined, KindUserList, and
// KindError are server-to-client only. KindLeave is accepted as a
// no-op alias for disconnect and otherwise reserved.
const (
	KindJoin         Kind = "join"
	KindJoined       Kind = "joined"
	KindLeave        Kind = "leave"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
	KindTyping       Kind = "typing"
	KindStopTyping   Kind = "stop-typing"
	KindUserList     Kind = "user-list"
	KindMessage      Kind = "message"
	KindError        Kind = "error"
)

// Envelope is the message unit exchanged over the wire.
//
// Data carries the negotiation or chat payload and is never parsed by
// the relay. Timestamp is stamped by the server on chat messages only,
// overriding any client-supplied value.
type Envelope struct {
	Type         Kind            `json:"type"`
	UserID       string          `json:"userId,omitempty"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	Username     string          `json:"username,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    int64           `json:"timestamp,omitempty"`
	Error        string          `json:"error,omitempty"`
	Users        []user.User     `json:"users,omitempty"`
}

// ParseEnvelope decodes a raw inbound frame into an Envelope.
func ParseEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// newJoinedEnvelope builds the reply sent to a connection immediately
// after a successful join.
func newJoinedEnvelope(id, username string) Envelope {
	return Envelope{
		Type:     KindJoined,
		UserID:   id,
		Username: username,
	}
}

// newUserListEnvelope builds the roster broadcast sent to every open
// connection on membership changes.
func newUserListEnvelope(users []user.User) Envelope {
	return Envelope{
		Type:  KindUserList,
		Users: users,
	}
}

// newErrorEnvelope builds the error reply sent to the originating
// connection on malformed input or protocol violations.
func newErrorEnvelope(message string) Envelope {
	return Envelope{
		Type:  KindError,
		Error: message,
	}
}

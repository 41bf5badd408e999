package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies a frame on the signaling socket.
type EventType string

const (
	// EventConnected is sent once by the server after the transport connects
	// and tells the client its session id.
	EventConnected EventType = "connected"

	// EventJoin (client to server) requests joining a room, creating it on
	// first use.
	EventJoin EventType = "join"

	// EventMembership (server to client) is broadcast to every room member on
	// any join: SenderID is the new member, Members the full set in join order.
	EventMembership EventType = "membership"

	// EventSignal carries an opaque negotiation envelope. Client to server it
	// names a TargetID; server to client it names the SenderID it came from.
	EventSignal EventType = "signal"

	// EventChat carries a chat message. Broadcast includes the sender, which
	// renders its own message only from the broadcast.
	EventChat EventType = "chat-message"

	// EventMemberLeft (server to client) names a session that left the room.
	EventMemberLeft EventType = "member-left"

	// EventError reports a rejected client event.
	EventError EventType = "error"
)

// Event is the single JSON frame exchanged over the signaling socket in both
// directions. The envelope is relayed as raw bytes; the coordinator never
// interprets it.
type Event struct {
	Type        EventType       `json:"type"`
	Room        string          `json:"room,omitempty"`
	SenderID    string          `json:"sender_id,omitempty"`
	TargetID    string          `json:"target_id,omitempty"`
	Members     []string        `json:"members,omitempty"`
	Envelope    json.RawMessage `json:"envelope,omitempty"`
	Text        string          `json:"text,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	SentAt      time.Time       `json:"sent_at,omitempty"`
}

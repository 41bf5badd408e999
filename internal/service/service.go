package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/immxrtalbeast/videomeet/internal/domain"
)

// RoomInfo is the read-model of an active room exposed over REST.
type RoomInfo struct {
	Ref       string    `json:"ref"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// Coordinator relays signaling between the sessions of a room. It owns all
// room state; clients only request mutations through these methods.
type Coordinator interface {
	Register(sess *domain.Session)
	Unregister(sess *domain.Session)
	Join(ctx context.Context, sess *domain.Session, roomRef string) error
	Signal(sess *domain.Session, targetID string, envelope json.RawMessage)
	Chat(sess *domain.Session, text, displayName string) error
	Leave(ctx context.Context, sess *domain.Session)
	Rooms() []RoomInfo
	Participants(roomRef string) ([]string, error)
}

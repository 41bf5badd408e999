package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatEntry is one message in a room's chat log. Entries are visible only to
// members present when the message arrives; late joiners get no backfill.
type ChatEntry struct {
	ID          uuid.UUID
	RoomRef     string
	SessionID   string
	DisplayName string
	Text        string
	SentAt      time.Time
}

func NewChatEntry(roomRef string, sess *Session, displayName, text string) *ChatEntry {
	entry := &ChatEntry{
		ID:          uuid.New(),
		RoomRef:     roomRef,
		DisplayName: displayName,
		Text:        text,
		SentAt:      time.Now().UTC(),
	}
	if sess != nil {
		entry.SessionID = sess.ID
		if entry.DisplayName == "" {
			entry.DisplayName = sess.DisplayName
		}
	}
	return entry
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// MeetingRecord is the history entry written when a session joins and closed
// when it leaves. Writes are fire-and-forget; the signaling path never depends
// on them.
type MeetingRecord struct {
	ID              uuid.UUID
	RoomRef         string
	SessionID       string
	DisplayName     string
	JoinedAt        time.Time
	LeftAt          *time.Time
	DurationSeconds int
}

func NewMeetingRecord(roomRef string, sess *Session) *MeetingRecord {
	rec := &MeetingRecord{
		ID:       uuid.New(),
		RoomRef:  roomRef,
		JoinedAt: time.Now().UTC(),
	}
	if sess != nil {
		rec.SessionID = sess.ID
		rec.DisplayName = sess.DisplayName
	}
	return rec
}

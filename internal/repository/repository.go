package repository

import (
	"context"
	"errors"
	"time"

	"github.com/immxrtalbeast/videomeet/internal/domain"
)

var ErrRecordNotFound = errors.New("meeting record not found")

// HistoryRepository persists room join/leave records. The coordinator writes
// to it fire-and-forget; failures are logged and never affect a room.
type HistoryRepository interface {
	SaveJoin(ctx context.Context, rec *domain.MeetingRecord) error
	SaveLeave(ctx context.Context, roomRef, sessionID string, leftAt time.Time) error
	ListByRoom(ctx context.Context, roomRef string) ([]*domain.MeetingRecord, error)
}

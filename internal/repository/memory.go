package repository

import (
	"context"
	"sync"
	"time"

	"github.com/immxrtalbeast/videomeet/internal/domain"
)

// InMemoryHistoryRepository keeps meeting records in process memory. It backs
// tests and DSN-less runs.
type InMemoryHistoryRepository struct {
	mu      sync.RWMutex
	records []*domain.MeetingRecord
}

func NewInMemoryHistoryRepository() *InMemoryHistoryRepository {
	return &InMemoryHistoryRepository{}
}

func (r *InMemoryHistoryRepository) SaveJoin(ctx context.Context, rec *domain.MeetingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *rec
	r.records = append(r.records, &stored)
	return nil
}

func (r *InMemoryHistoryRepository) SaveLeave(ctx context.Context, roomRef, sessionID string, leftAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.RoomRef == roomRef && rec.SessionID == sessionID && rec.LeftAt == nil {
			left := leftAt.UTC()
			rec.LeftAt = &left
			rec.DurationSeconds = int(left.Sub(rec.JoinedAt).Seconds())
			return nil
		}
	}
	return ErrRecordNotFound
}

func (r *InMemoryHistoryRepository) ListByRoom(ctx context.Context, roomRef string) ([]*domain.MeetingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.MeetingRecord, 0)
	for _, rec := range r.records {
		if rec.RoomRef == roomRef {
			copied := *rec
			result = append(result, &copied)
		}
	}
	return result, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/immxrtalbeast/videomeet/internal/domain"
	"github.com/immxrtalbeast/videomeet/internal/repository/model"
	"gorm.io/gorm"
)

type PostgresHistoryRepository struct {
	db *gorm.DB
}

func NewPostgresHistoryRepository(db *gorm.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

func (r *PostgresHistoryRepository) SaveJoin(ctx context.Context, rec *domain.MeetingRecord) error {
	row := model.MeetingRecord{
		ID:          rec.ID,
		RoomRef:     rec.RoomRef,
		SessionID:   rec.SessionID,
		DisplayName: rec.DisplayName,
		JoinedAt:    rec.JoinedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *PostgresHistoryRepository) SaveLeave(ctx context.Context, roomRef, sessionID string, leftAt time.Time) error {
	var row model.MeetingRecord
	err := r.db.WithContext(ctx).
		Where("room_ref = ? AND session_id = ? AND left_at IS NULL", roomRef, sessionID).
		Order("joined_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}

	left := leftAt.UTC()
	row.LeftAt = &left
	row.DurationSeconds = int(left.Sub(row.JoinedAt).Seconds())

	return r.db.WithContext(ctx).Save(&row).Error
}

func (r *PostgresHistoryRepository) ListByRoom(ctx context.Context, roomRef string) ([]*domain.MeetingRecord, error) {
	var rows []model.MeetingRecord
	err := r.db.WithContext(ctx).
		Where("room_ref = ?", roomRef).
		Order("joined_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.MeetingRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, &domain.MeetingRecord{
			ID:              row.ID,
			RoomRef:         row.RoomRef,
			SessionID:       row.SessionID,
			DisplayName:     row.DisplayName,
			JoinedAt:        row.JoinedAt,
			LeftAt:          row.LeftAt,
			DurationSeconds: row.DurationSeconds,
		})
	}
	return result, nil
}

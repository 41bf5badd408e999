package model

import (
	"time"

	"github.com/google/uuid"
)

type MeetingRecord struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RoomRef         string     `gorm:"size:255;index;not null"`
	SessionID       string     `gorm:"size:64;index;not null"`
	DisplayName     string     `gorm:"size:255"`
	JoinedAt        time.Time  `gorm:"not null"`
	LeftAt          *time.Time `gorm:"index"`
	DurationSeconds int        `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

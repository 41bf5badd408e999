package repository

import (
	"context"
	"testing"
	"time"

	"github.com/immxrtalbeast/videomeet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveJoinAndLeaveComputesDuration(t *testing.T) {
	repo := NewInMemoryHistoryRepository()
	ctx := context.Background()

	sess := domain.NewSession("alice")
	rec := domain.NewMeetingRecord("room", sess)
	rec.JoinedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveJoin(ctx, rec))

	leftAt := rec.JoinedAt.Add(90 * time.Second)
	require.NoError(t, repo.SaveLeave(ctx, "room", sess.ID, leftAt))

	records, err := repo.ListByRoom(ctx, "room")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sess.ID, records[0].SessionID)
	assert.Equal(t, "alice", records[0].DisplayName)
	require.NotNil(t, records[0].LeftAt)
	assert.Equal(t, 90, records[0].DurationSeconds)
}

func TestSaveLeaveClosesLatestOpenRecord(t *testing.T) {
	repo := NewInMemoryHistoryRepository()
	ctx := context.Background()

	sess := domain.NewSession("alice")

	first := domain.NewMeetingRecord("room", sess)
	first.JoinedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveJoin(ctx, first))
	require.NoError(t, repo.SaveLeave(ctx, "room", sess.ID, first.JoinedAt.Add(time.Minute)))

	// A re-join opens a second record; the next leave must close that one,
	// not touch the already closed first visit.
	second := domain.NewMeetingRecord("room", sess)
	second.JoinedAt = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveJoin(ctx, second))
	require.NoError(t, repo.SaveLeave(ctx, "room", sess.ID, second.JoinedAt.Add(2*time.Minute)))

	records, err := repo.ListByRoom(ctx, "room")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 60, records[0].DurationSeconds)
	assert.Equal(t, 120, records[1].DurationSeconds)
}

func TestSaveLeaveWithoutJoin(t *testing.T) {
	repo := NewInMemoryHistoryRepository()

	err := repo.SaveLeave(context.Background(), "room", "unknown", time.Now())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestListByRoomFiltersOtherRooms(t *testing.T) {
	repo := NewInMemoryHistoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveJoin(ctx, domain.NewMeetingRecord("one", domain.NewSession("alice"))))
	require.NoError(t, repo.SaveJoin(ctx, domain.NewMeetingRecord("two", domain.NewSession("bob"))))

	records, err := repo.ListByRoom(ctx, "one")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "one", records[0].RoomRef)
}

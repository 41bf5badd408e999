package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/immxrtalbeast/videomeet/internal/domain"
	"github.com/immxrtalbeast/videomeet/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator() *RoomCoordinator {
	return NewRoomCoordinator(repository.NewInMemoryHistoryRepository(), nil)
}

func connect(t *testing.T, c *RoomCoordinator, name string) *domain.Session {
	t.Helper()
	sess := domain.NewSession(name)
	c.Register(sess)
	return sess
}

// drainEvents empties the session's outbound queue.
func drainEvents(sess *domain.Session) []domain.Event {
	var events []domain.Event
	for {
		select {
		case ev := <-sess.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventsOfType(events []domain.Event, typ domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestJoinBroadcastsMemberListInJoinOrder(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	a := connect(t, c, "alice")
	require.NoError(t, c.Join(ctx, a, "abc123"))

	events := drainEvents(a)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventMembership, events[0].Type)
	assert.Equal(t, a.ID, events[0].SenderID)
	assert.Equal(t, []string{a.ID}, events[0].Members)

	b := connect(t, c, "bob")
	require.NoError(t, c.Join(ctx, b, "abc123"))

	// Both the existing member and the joiner get the same broadcast with
	// the full member list after the join, in join order.
	for _, sess := range []*domain.Session{a, b} {
		events := drainEvents(sess)
		require.Len(t, events, 1)
		assert.Equal(t, b.ID, events[0].SenderID)
		assert.Equal(t, []string{a.ID, b.ID}, events[0].Members)
	}
}

func TestJoinEmptyRoomRef(t *testing.T) {
	c := newTestCoordinator()
	sess := connect(t, c, "alice")

	err := c.Join(context.Background(), sess, "")
	assert.ErrorIs(t, err, ErrEmptyRoomRef)
	assert.Empty(t, drainEvents(sess))
}

func TestRejoinDoesNotDuplicateMember(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	sess := connect(t, c, "alice")
	require.NoError(t, c.Join(ctx, sess, "room"))
	require.NoError(t, c.Join(ctx, sess, "room"))

	members, err := c.Participants("room")
	require.NoError(t, err)
	assert.Equal(t, []string{sess.ID}, members)
}

func TestJoinSwitchingRoomsLeavesOldRoom(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	a := connect(t, c, "alice")
	b := connect(t, c, "bob")
	require.NoError(t, c.Join(ctx, a, "first"))
	require.NoError(t, c.Join(ctx, b, "first"))
	drainEvents(a)
	drainEvents(b)

	require.NoError(t, c.Join(ctx, a, "second"))

	left := eventsOfType(drainEvents(b), domain.EventMemberLeft)
	require.Len(t, left, 1)
	assert.Equal(t, a.ID, left[0].SenderID)

	members, err := c.Participants("first")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, members)
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	sess := connect(t, c, "alice")
	require.NoError(t, c.Join(ctx, sess, "abc123"))
	c.Leave(ctx, sess)

	_, err := c.Participants("abc123")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// A fresh join starts a room with one member, not two.
	again := connect(t, c, "bob")
	require.NoError(t, c.Join(ctx, again, "abc123"))

	members, err := c.Participants("abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{again.ID}, members)
}

func TestLeaveNotifiesRemainingMembers(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	a := connect(t, c, "alice")
	b := connect(t, c, "bob")
	require.NoError(t, c.Join(ctx, a, "room"))
	require.NoError(t, c.Join(ctx, b, "room"))
	drainEvents(a)
	drainEvents(b)

	c.Leave(ctx, b)

	left := eventsOfType(drainEvents(a), domain.EventMemberLeft)
	require.Len(t, left, 1)
	assert.Equal(t, b.ID, left[0].SenderID)
	assert.Empty(t, drainEvents(b), "the leaver gets no memberLeft for itself")
}

func TestSignalRelaysEnvelopeUnchanged(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	a := connect(t, c, "alice")
	b := connect(t, c, "bob")
	require.NoError(t, c.Join(ctx, a, "room"))
	require.NoError(t, c.Join(ctx, b, "room"))
	drainEvents(a)
	drainEvents(b)

	envelope := json.RawMessage(`{"sdp":{"type":"offer","sdp":"v=0"}}`)
	c.Signal(a, b.ID, envelope)

	events := drainEvents(b)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSignal, events[0].Type)
	assert.Equal(t, a.ID, events[0].SenderID)
	assert.JSONEq(t, string(envelope), string(events[0].Envelope))
	assert.Empty(t, drainEvents(a), "signal is unicast")
}

func TestSignalUnknownTargetIsNoOp(t *testing.T) {
	c := newTestCoordinator()
	a := connect(t, c, "alice")

	// Neither an empty nor an unknown target is an error; the peer may have
	// just disconnected.
	c.Signal(a, "", json.RawMessage(`{}`))
	c.Signal(a, "gone", json.RawMessage(`{}`))
	assert.Empty(t, drainEvents(a))
}

func TestChatBroadcastToRoomOnly(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	a := connect(t, c, "alice")
	b := connect(t, c, "bob")
	outsider := connect(t, c, "eve")
	require.NoError(t, c.Join(ctx, a, "room"))
	require.NoError(t, c.Join(ctx, b, "room"))
	require.NoError(t, c.Join(ctx, outsider, "other"))
	drainEvents(a)
	drainEvents(b)
	drainEvents(outsider)

	require.NoError(t, c.Chat(a, "hello", "Alice"))

	// Everyone in the room, sender included, gets exactly one copy.
	for _, sess := range []*domain.Session{a, b} {
		events := drainEvents(sess)
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventChat, events[0].Type)
		assert.Equal(t, "hello", events[0].Text)
		assert.Equal(t, "Alice", events[0].DisplayName)
		assert.Equal(t, a.ID, events[0].SenderID)
	}
	assert.Empty(t, drainEvents(outsider))
}

func TestChatBeforeJoinRejected(t *testing.T) {
	c := newTestCoordinator()
	sess := connect(t, c, "alice")

	err := c.Chat(sess, "hello", "Alice")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestChatLengthLimits(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	sess := connect(t, c, "alice")
	require.NoError(t, c.Join(ctx, sess, "room"))

	long := make([]byte, maxChatMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, c.Chat(sess, string(long), "Alice"), ErrMessageTooLong)

	name := make([]byte, maxChatSenderLength+1)
	for i := range name {
		name[i] = 'b'
	}
	assert.ErrorIs(t, c.Chat(sess, "hi", string(name)), ErrSenderTooLong)

	// Limits count runes, not bytes; a maximum-length multibyte message fits.
	assert.NoError(t, c.Chat(sess, strings.Repeat("ж", maxChatMessageLength), "Alice"))
}

func TestJoinRacingRoomDeletionGetsFreshRoom(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	a := connect(t, c, "alice")
	require.NoError(t, c.Join(ctx, a, "room"))

	// Freeze the window where the last leave marked the room closed but has
	// not yet removed it from the map.
	c.mu.Lock()
	stale := c.rooms["room"]
	c.mu.Unlock()
	stale.Mutex.Lock()
	stale.RemoveMember(a.ID)
	stale.Closed = true
	stale.Mutex.Unlock()

	b := connect(t, c, "bob")
	require.NoError(t, c.Join(ctx, b, "room"))

	members, err := c.Participants("room")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, members)

	c.mu.RLock()
	fresh := c.rooms["room"]
	c.mu.RUnlock()
	assert.NotSame(t, stale, fresh)
}

func TestRoomsListsActiveRooms(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	a := connect(t, c, "alice")
	b := connect(t, c, "bob")
	require.NoError(t, c.Join(ctx, a, "one"))
	require.NoError(t, c.Join(ctx, b, "one"))

	infos := c.Rooms()
	require.Len(t, infos, 1)
	assert.Equal(t, "one", infos[0].Ref)
	assert.Equal(t, 2, infos[0].Members)
}

func TestSlowSessionNeverBlocksRoom(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()

	slow := connect(t, c, "slow")
	require.NoError(t, c.Join(ctx, slow, "room"))

	// Saturate the slow session's queue; further fan-out must drop, not block.
	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Chat(slow, "spam", "slow"))
	}

	fast := connect(t, c, "fast")
	require.NoError(t, c.Join(ctx, fast, "room"))

	members, err := c.Participants("room")
	require.NoError(t, err)
	assert.Equal(t, []string{slow.ID, fast.ID}, members)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/immxrtalbeast/videomeet/internal/domain"
	"github.com/immxrtalbeast/videomeet/internal/repository"
	"github.com/immxrtalbeast/videomeet/lib/logger/sl"
)

var (
	ErrEmptyRoomRef   = errors.New("room ref is required")
	ErrNotInRoom      = errors.New("session is not in a room")
	ErrRoomNotFound   = errors.New("room not found")
	ErrMessageTooLong = errors.New("chat message too long")
	ErrSenderTooLong  = errors.New("chat sender name too long")
)

const maxChatMessageLength = 4000
const maxChatSenderLength = 255

const historyWriteTimeout = 5 * time.Second

// RoomCoordinator tracks room membership and fans out signaling and chat
// events to the right sessions. Each room is serialized on its own mutex, so
// two joins to the same room cannot interleave while unrelated rooms proceed
// concurrently. Fan-out is a non-blocking enqueue per member; a dead transport
// never stalls a room.
type RoomCoordinator struct {
	log     *slog.Logger
	history repository.HistoryRepository

	mu       sync.RWMutex
	rooms    map[string]*domain.Room
	sessions map[string]*domain.Session
}

func NewRoomCoordinator(history repository.HistoryRepository, log *slog.Logger) *RoomCoordinator {
	if log == nil {
		log = slog.Default()
	}
	return &RoomCoordinator{
		log:      log,
		history:  history,
		rooms:    make(map[string]*domain.Room),
		sessions: make(map[string]*domain.Session),
	}
}

// Register makes a connected session routable for signal relay. Called once
// when its transport connects, before any join.
func (c *RoomCoordinator) Register(sess *domain.Session) {
	c.mu.Lock()
	c.sessions[sess.ID] = sess
	c.mu.Unlock()

	c.log.Debug("session registered", slog.String("session_id", sess.ID))
}

// Unregister removes the session from the routing table. Leave handles room
// cleanup separately.
func (c *RoomCoordinator) Unregister(sess *domain.Session) {
	c.mu.Lock()
	delete(c.sessions, sess.ID)
	c.mu.Unlock()

	c.log.Debug("session unregistered", slog.String("session_id", sess.ID))
}

// Join adds the session to the room, creating it on first use, and broadcasts
// the membership event to every member including the joiner. A re-join by the
// same session does not duplicate the entry. The member list in the broadcast
// is taken under the same lock as the mutation.
func (c *RoomCoordinator) Join(ctx context.Context, sess *domain.Session, roomRef string) error {
	const op = "coordinator.join"
	if roomRef == "" {
		return ErrEmptyRoomRef
	}

	log := c.log.With(
		slog.String("op", op),
		slog.String("room", roomRef),
		slog.String("session_id", sess.ID),
	)

	if sess.Room != "" && sess.Room != roomRef {
		c.Leave(ctx, sess)
	}

	for {
		room := c.getOrCreateRoom(roomRef)

		room.Mutex.Lock()
		if room.Closed {
			room.Mutex.Unlock()
			// Lost the race with the last leave. Drop the dying room from
			// the map ourselves so the retry gets a fresh one instead of
			// spinning until the leaver's deleteRoom runs.
			c.deleteRoom(roomRef, room)
			continue
		}

		added := room.AddMember(sess)
		sess.Room = roomRef
		if added {
			sess.JoinedAt = time.Now().UTC()
		}

		ev := domain.Event{
			Type:     domain.EventMembership,
			Room:     roomRef,
			SenderID: sess.ID,
			Members:  room.MemberIDs(),
		}
		c.fanOut(room.Members(), ev)
		room.Mutex.Unlock()

		if added {
			log.Info("session joined room", slog.Int("members", len(ev.Members)))
			go c.recordJoin(domain.NewMeetingRecord(roomRef, sess))
		} else {
			log.Debug("re-join ignored, already a member")
		}
		return nil
	}
}

// Signal forwards the envelope unchanged to the target session. An empty or
// unknown target is an expected race with disconnect, not an error.
func (c *RoomCoordinator) Signal(sess *domain.Session, targetID string, envelope json.RawMessage) {
	if targetID == "" {
		c.log.Debug("signal with empty target dropped", slog.String("from", sess.ID))
		return
	}

	c.mu.RLock()
	target, ok := c.sessions[targetID]
	c.mu.RUnlock()
	if !ok {
		c.log.Debug("signal target not connected",
			slog.String("from", sess.ID),
			slog.String("target", targetID),
		)
		return
	}

	target.EnqueueEvent(domain.Event{
		Type:     domain.EventSignal,
		SenderID: sess.ID,
		Envelope: envelope,
	})
}

// Chat appends the message to the room's log and broadcasts it to every
// current member, the sender included. Sending before joining a room is a
// no-op for the room but surfaces an error to the caller.
func (c *RoomCoordinator) Chat(sess *domain.Session, text, displayName string) error {
	if sess.Room == "" {
		return ErrNotInRoom
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return ErrMessageTooLong
	}
	if utf8.RuneCountInString(displayName) > maxChatSenderLength {
		return ErrSenderTooLong
	}

	room := c.getRoom(sess.Room)
	if room == nil {
		return ErrRoomNotFound
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()
	if room.Closed {
		return ErrRoomNotFound
	}

	entry := domain.NewChatEntry(room.Ref, sess, displayName, text)
	room.AppendChat(entry)

	c.fanOut(room.Members(), domain.Event{
		Type:        domain.EventChat,
		Room:        room.Ref,
		SenderID:    sess.ID,
		Text:        entry.Text,
		DisplayName: entry.DisplayName,
		SentAt:      entry.SentAt,
	})
	return nil
}

// Leave removes the session from its room, notifies the remaining members and
// deletes the room once empty. Network loss and deliberate leave take the
// same path.
func (c *RoomCoordinator) Leave(ctx context.Context, sess *domain.Session) {
	const op = "coordinator.leave"
	if sess.Room == "" {
		return
	}

	roomRef := sess.Room
	log := c.log.With(
		slog.String("op", op),
		slog.String("room", roomRef),
		slog.String("session_id", sess.ID),
	)

	room := c.getRoom(roomRef)
	if room == nil {
		sess.Room = ""
		return
	}

	room.Mutex.Lock()
	removed := room.RemoveMember(sess.ID)
	sess.Room = ""
	empty := room.Empty()
	if empty {
		room.Closed = true
	}
	if removed && !empty {
		c.fanOut(room.Members(), domain.Event{
			Type:     domain.EventMemberLeft,
			Room:     roomRef,
			SenderID: sess.ID,
		})
	}
	room.Mutex.Unlock()

	if empty {
		c.deleteRoom(roomRef, room)
		log.Info("room deleted, last member left")
	}

	if removed {
		log.Info("session left room")
		go c.recordLeave(roomRef, sess.ID)
	}
}

// Rooms lists the active rooms for the REST surface.
func (c *RoomCoordinator) Rooms() []RoomInfo {
	c.mu.RLock()
	rooms := make([]*domain.Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		room.Mutex.Lock()
		if !room.Closed {
			infos = append(infos, RoomInfo{
				Ref:       room.Ref,
				Members:   len(room.MemberIDs()),
				CreatedAt: room.CreatedAt,
			})
		}
		room.Mutex.Unlock()
	}
	return infos
}

// Participants returns the member ids of a room in join order.
func (c *RoomCoordinator) Participants(roomRef string) ([]string, error) {
	room := c.getRoom(roomRef)
	if room == nil {
		return nil, ErrRoomNotFound
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()
	if room.Closed {
		return nil, ErrRoomNotFound
	}
	return room.MemberIDs(), nil
}

func (c *RoomCoordinator) getOrCreateRoom(roomRef string) *domain.Room {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room, ok := c.rooms[roomRef]; ok {
		return room
	}

	room := domain.NewRoom(roomRef)
	c.rooms[roomRef] = room
	c.log.Info("room created", slog.String("room", roomRef))
	return room
}

func (c *RoomCoordinator) getRoom(roomRef string) *domain.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[roomRef]
}

func (c *RoomCoordinator) deleteRoom(roomRef string, room *domain.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rooms[roomRef] == room {
		delete(c.rooms, roomRef)
	}
}

func (c *RoomCoordinator) fanOut(members []*domain.Session, ev domain.Event) {
	for _, member := range members {
		if !member.EnqueueEvent(ev) {
			c.log.Debug("dropping event for slow session",
				slog.String("session_id", member.ID),
				slog.String("type", string(ev.Type)),
			)
		}
	}
}

func (c *RoomCoordinator) recordJoin(rec *domain.MeetingRecord) {
	if c.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := c.history.SaveJoin(ctx, rec); err != nil {
		c.log.Warn("failed to record join", sl.Err(err))
	}
}

func (c *RoomCoordinator) recordLeave(roomRef, sessionID string) {
	if c.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := c.history.SaveLeave(ctx, roomRef, sessionID, time.Now().UTC()); err != nil {
		c.log.Warn("failed to record leave", sl.Err(err))
	}
}

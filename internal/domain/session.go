package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const sessionEventBuffer = 32

// Session is one connected client's identity on the coordinator. It is created
// when the transport connects and destroyed on disconnect. Room is empty until
// the session joins; it is only touched by the session's own read loop and the
// coordinator's handlers, which are serialized per session.
type Session struct {
	ID          string
	DisplayName string
	Room        string
	ConnectedAt time.Time
	JoinedAt    time.Time

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(displayName string) *Session {
	return &Session{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		ConnectedAt: time.Now().UTC(),
		events:      make(chan Event, sessionEventBuffer),
		done:        make(chan struct{}),
	}
}

// EnqueueEvent offers an event to the session's outbound queue without
// blocking. A full queue or a closed session drops the event; a slow transport
// must never hold up a room.
func (s *Session) EnqueueEvent(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// Events is the outbound queue drained by the session's writer goroutine.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session disconnects.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close marks the session disconnected and wakes its writer. Safe to call
// more than once. The events channel itself is never closed so late
// broadcasts cannot panic.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

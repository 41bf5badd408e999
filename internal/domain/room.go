package domain

import (
	"sync"
	"time"
)

// Room represents a named set of participants that can signal each other and
// share a chat log. Rooms are created on the first join to an unknown ref and
// deleted when the last member leaves. All mutation goes through the
// coordinator, which holds Mutex around every change and the broadcast it
// triggers, so the member list a broadcast carries always matches the mutation
// that produced it.
type Room struct {
	Mutex     sync.Mutex
	Ref       string
	CreatedAt time.Time

	// Closed marks a room that was deleted after its last member left.
	// A join racing the delete re-checks this flag and retries.
	Closed bool

	members []*Session
	chat    []*ChatEntry
}

func NewRoom(ref string) *Room {
	return &Room{
		Ref:       ref,
		CreatedAt: time.Now().UTC(),
	}
}

// AddMember appends the session to the member set, preserving join order.
// Re-join by the same session is idempotent. Caller holds Mutex.
func (r *Room) AddMember(sess *Session) bool {
	for _, m := range r.members {
		if m.ID == sess.ID {
			return false
		}
	}
	r.members = append(r.members, sess)
	return true
}

// RemoveMember deletes the session from the member set. Caller holds Mutex.
func (r *Room) RemoveMember(sessionID string) bool {
	for i, m := range r.members {
		if m.ID == sessionID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Members returns the member sessions in join order. Caller holds Mutex.
func (r *Room) Members() []*Session {
	out := make([]*Session, len(r.members))
	copy(out, r.members)
	return out
}

// MemberIDs returns the member ids in join order. Caller holds Mutex.
func (r *Room) MemberIDs() []string {
	ids := make([]string, len(r.members))
	for i, m := range r.members {
		ids[i] = m.ID
	}
	return ids
}

// Empty reports whether the member set is empty. Caller holds Mutex.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

// AppendChat adds an entry to the room's chat log. The log is append-only and
// dies with the room. Caller holds Mutex.
func (r *Room) AppendChat(entry *ChatEntry) {
	r.chat = append(r.chat, entry)
}

// ChatLog returns the chat entries in arrival order. Caller holds Mutex.
func (r *Room) ChatLog() []*ChatEntry {
	out := make([]*ChatEntry, len(r.chat))
	copy(out, r.chat)
	return out
}

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/videomeet/internal/domain"
)

var ErrTransportClosed = errors.New("signaling transport closed")

// Transport is the ordered bidirectional channel between a client and the
// coordinator. One per client.
type Transport interface {
	Send(ev domain.Event) error
	Events() <-chan domain.Event
	Close() error
}

// WSTransport is the websocket transport used against a live coordinator.
type WSTransport struct {
	conn   *websocket.Conn
	events chan domain.Event

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the coordinator's /ws endpoint.
func Dial(ctx context.Context, url string) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signaling server: %w", err)
	}

	t := &WSTransport{
		conn:   conn,
		events: make(chan domain.Event, 32),
		closed: make(chan struct{}),
	}
	go t.readPump()

	return t, nil
}

func (t *WSTransport) readPump() {
	defer close(t.events)
	for {
		var ev domain.Event
		if err := t.conn.ReadJSON(&ev); err != nil {
			return
		}
		select {
		case t.events <- ev:
		case <-t.closed:
			return
		}
	}
}

func (t *WSTransport) Send(ev domain.Event) error {
	select {
	case <-t.closed:
		return ErrTransportClosed
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(ev)
}

func (t *WSTransport) Events() <-chan domain.Event {
	return t.events
}

func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.writeMu.Lock()
		t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		t.conn.Close()
	})
	return nil
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/videomeet/internal/domain"
	"github.com/immxrtalbeast/videomeet/internal/repository"
	"github.com/immxrtalbeast/videomeet/internal/service"
	"github.com/immxrtalbeast/videomeet/lib/logger/sl"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size. SDP offers fit well under this.
	maxMessageSize = 64 * 1024
)

type RoomController struct {
	coordinator service.Coordinator
	history     repository.HistoryRepository
	log         *slog.Logger
	upgrader    websocket.Upgrader
}

func NewRoomController(coordinator service.Coordinator, history repository.HistoryRepository, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		coordinator: coordinator,
		history:     history,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect upgrades to a websocket and runs the session's read loop.
// Authentication happens upstream; the relay only needs a display name.
func (c *RoomController) Connect(ctx *gin.Context) {
	displayName := ctx.Query("name")
	if displayName == "" {
		displayName = "guest"
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Error("failed to upgrade connection", sl.Err(err))
		return
	}

	sess := domain.NewSession(displayName)
	c.coordinator.Register(sess)

	log := c.log.With(slog.String("session_id", sess.ID))
	log.Info("session connected", slog.String("display_name", displayName))

	go c.writePump(sess, conn)

	sess.EnqueueEvent(domain.Event{
		Type:     domain.EventConnected,
		SenderID: sess.ID,
	})

	c.readLoop(sess, conn, log)

	c.coordinator.Leave(context.Background(), sess)
	c.coordinator.Unregister(sess)
	sess.Close()
	conn.Close()
	log.Info("session disconnected")
}

func (c *RoomController) readLoop(sess *domain.Session, conn *websocket.Conn, log *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read error", sl.Err(err))
			}
			return
		}

		switch ev.Type {
		case domain.EventJoin:
			if err := c.coordinator.Join(context.Background(), sess, ev.Room); err != nil {
				c.rejectEvent(sess, err)
			}
		case domain.EventSignal:
			c.coordinator.Signal(sess, ev.TargetID, ev.Envelope)
		case domain.EventChat:
			if err := c.coordinator.Chat(sess, ev.Text, ev.DisplayName); err != nil {
				c.rejectEvent(sess, err)
			}
		default:
			log.Debug("unknown event type dropped", slog.String("type", string(ev.Type)))
		}
	}
}

// writePump is the single writer for the connection. It drains the session's
// event queue and keeps the connection alive with pings.
func (c *RoomController) writePump(sess *domain.Session, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev := <-sess.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sess.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *RoomController) rejectEvent(sess *domain.Session, err error) {
	sess.EnqueueEvent(domain.Event{
		Type: domain.EventError,
		Text: err.Error(),
	})
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"rooms": c.coordinator.Rooms()})
}

func (c *RoomController) ListParticipants(ctx *gin.Context) {
	members, err := c.coordinator.Participants(ctx.Param("roomRef"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"participants": members})
}

func (c *RoomController) RoomHistory(ctx *gin.Context) {
	if c.history == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "history store not configured"})
		return
	}

	records, err := c.history.ListByRoom(ctx.Request.Context(), ctx.Param("roomRef"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"history": records})
}

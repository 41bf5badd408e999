// Command client is a headless meeting probe. It joins a room over the
// signaling server with a sample-fed media source and logs membership, chat
// and negotiation progress, which makes it usable for smoke tests and load
// checks without a browser.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/immxrtalbeast/videomeet/internal/client"
	"github.com/immxrtalbeast/videomeet/internal/domain"
	"github.com/pion/webrtc/v3"
)

func main() {
	var (
		serverURL   = flag.String("server", "ws://localhost:8080/ws", "signaling server websocket url")
		roomRef     = flag.String("room", "", "room to join")
		displayName = flag.String("name", "probe", "display name")
		chat        = flag.String("chat", "", "chat message to send after joining")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if *roomRef == "" {
		log.Error("room is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := client.Dial(ctx, *serverURL)
	if err != nil {
		log.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}

	manager, err := client.NewManager(client.Config{
		Transport:   transport,
		DisplayName: *displayName,
		RTC: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
		Camera: client.StaticCapture(""),
		Screen: client.StaticCapture(""),
		Logger: log,
		OnChat: func(ev domain.Event) {
			log.Info("chat",
				slog.String("from", ev.DisplayName),
				slog.String("text", ev.Text),
			)
		},
		OnRemoteTrack: func(sessionID string, track *webrtc.TrackRemote) {
			log.Info("remote track",
				slog.String("peer", sessionID),
				slog.String("kind", track.Kind().String()),
			)
		},
		OnPeerClosed: func(sessionID string) {
			log.Info("peer closed", slog.String("peer", sessionID))
		},
	})
	if err != nil {
		log.Error("failed to start manager", slog.Any("error", err))
		os.Exit(1)
	}
	defer manager.Close()

	if *chat != "" {
		go func() {
			// Wait until the coordinator has assigned a session id.
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for manager.SelfID() == "" {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
			if err := manager.SendChat(*chat); err != nil {
				log.Warn("failed to send chat", slog.Any("error", err))
			}
		}()
	}

	if err := manager.Run(ctx, *roomRef); err != nil && ctx.Err() == nil {
		log.Error("manager stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/videomeet/internal/domain"
	"github.com/immxrtalbeast/videomeet/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

var (
	// ErrMediaAcquisition is fatal: without a local source the client never
	// joins and no links are created.
	ErrMediaAcquisition = errors.New("failed to acquire local media")

	ErrScreenUnavailable = errors.New("screen capture is not available")
)

// RemoteStream is one remote participant's media as seen by the UI layer.
type RemoteStream struct {
	SessionID string
	Tracks    []*webrtc.TrackRemote
}

// Config wires a Manager. Camera is required; Screen may be nil when the
// platform offers no screen capture.
type Config struct {
	Transport   Transport
	DisplayName string
	RTC         webrtc.Configuration
	Camera      CaptureFunc
	Screen      CaptureFunc
	Logger      *slog.Logger

	// Called from the event loop / pion callbacks; keep them fast.
	OnChat        func(ev domain.Event)
	OnRemoteTrack func(sessionID string, track *webrtc.TrackRemote)
	OnPeerClosed  func(sessionID string)
}

// Manager owns one local media source and one PeerLink per remote
// participant. Coordinator events drive link creation and teardown; pion
// callbacks (ICE, remote tracks) interleave freely with them.
type Manager struct {
	log       *slog.Logger
	transport Transport
	rtc       webrtc.Configuration

	displayName   string
	screenCapture CaptureFunc

	onChat        func(ev domain.Event)
	onRemoteTrack func(sessionID string, track *webrtc.TrackRemote)
	onPeerClosed  func(sessionID string)

	// newConn builds the negotiated connection for a link with the local
	// source's tracks attached; swapped for a fake in tests.
	newConn func(remoteID string, src Source) (negotiator, error)

	mu           sync.Mutex
	selfID       string
	roomRef      string
	camera       Source
	source       Source
	sharing      bool
	audioEnabled bool
	videoEnabled bool
	links        map[string]*PeerLink
	remotes      map[string][]*webrtc.TrackRemote
}

// NewManager acquires the camera and prepares a manager. Acquisition failure
// is surfaced to the caller and nothing is joined.
func NewManager(cfg Config) (*Manager, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.Camera == nil {
		return nil, errors.New("camera capture is required")
	}

	camera, err := cfg.Camera()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaAcquisition, err)
	}

	m := &Manager{
		log:           log,
		transport:     cfg.Transport,
		rtc:           cfg.RTC,
		displayName:   cfg.DisplayName,
		screenCapture: cfg.Screen,
		onChat:        cfg.OnChat,
		onRemoteTrack: cfg.OnRemoteTrack,
		onPeerClosed:  cfg.OnPeerClosed,
		camera:        camera,
		source:        camera,
		audioEnabled:  true,
		videoEnabled:  true,
		links:         make(map[string]*PeerLink),
		remotes:       make(map[string][]*webrtc.TrackRemote),
	}
	m.newConn = m.newPionConn

	return m, nil
}

// Run joins the room once the coordinator assigns a session id and processes
// events until the context is cancelled or the transport closes.
func (m *Manager) Run(ctx context.Context, roomRef string) error {
	m.mu.Lock()
	m.roomRef = roomRef
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case ev, ok := <-m.transport.Events():
			if !ok {
				m.shutdown()
				return ErrTransportClosed
			}
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventConnected:
		m.mu.Lock()
		m.selfID = ev.SenderID
		roomRef := m.roomRef
		m.mu.Unlock()

		m.log.Info("connected", slog.String("session_id", ev.SenderID))
		if err := m.transport.Send(domain.Event{Type: domain.EventJoin, Room: roomRef}); err != nil {
			m.log.Error("failed to send join", sl.Err(err))
		}
	case domain.EventMembership:
		m.handleMembership(ev.SenderID, ev.Members)
	case domain.EventSignal:
		m.handleSignal(ev.SenderID, ev.Envelope)
	case domain.EventMemberLeft:
		m.handleMemberLeft(ev.SenderID)
	case domain.EventChat:
		if m.onChat != nil {
			m.onChat(ev)
		}
	case domain.EventError:
		m.log.Warn("server rejected event", slog.String("reason", ev.Text))
	default:
		m.log.Debug("unknown event dropped", slog.String("type", string(ev.Type)))
	}
}

// isSelf is the single self-filtering predicate: membership and signal events
// about the local session never create or feed a PeerLink.
func (m *Manager) isSelf(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return id != "" && id == m.selfID
}

// handleMembership creates links for every remote participant named in the
// broadcast. Only the session whose own id equals the new member id acts as
// initiator and offers to everyone else; all other sessions stay passive
// until an offer arrives. That single tie-break rule prevents glare.
func (m *Manager) handleMembership(newMemberID string, members []string) {
	m.mu.Lock()
	selfID := m.selfID
	src := m.source
	missing := make([]string, 0, len(members))
	for _, id := range members {
		if id == "" || id == selfID {
			continue
		}
		if _, ok := m.links[id]; !ok {
			missing = append(missing, id)
		}
	}
	initiator := newMemberID == selfID
	m.mu.Unlock()

	created := 0
	for _, id := range missing {
		conn, err := m.newConn(id, src)
		if err != nil {
			m.log.Error("failed to create peer connection",
				slog.String("peer", id), sl.Err(err))
			continue
		}

		link := newPeerLink(id, m.envelopeSender(id), m.log)
		link.attach(conn)

		m.mu.Lock()
		if _, ok := m.links[id]; ok {
			m.mu.Unlock()
			link.Close()
			continue
		}
		m.links[id] = link
		m.mu.Unlock()
		created++
	}

	m.mu.Lock()
	offerTargets := make([]*PeerLink, 0, len(m.links))
	if initiator {
		for _, link := range m.links {
			offerTargets = append(offerTargets, link)
		}
	}
	m.mu.Unlock()

	m.log.Info("membership update",
		slog.String("new_member", newMemberID),
		slog.Int("members", len(members)),
		slog.Int("new_links", created),
		slog.Bool("initiator", initiator),
	)

	for _, link := range offerTargets {
		if err := link.SendOffer(); err != nil {
			m.log.Error("offer failed, link stalled",
				slog.String("peer", link.RemoteID()), sl.Err(err))
		}
	}
}

func (m *Manager) handleSignal(fromID string, raw []byte) {
	if m.isSelf(fromID) {
		return
	}

	env, err := domain.ParseEnvelope(raw)
	if err != nil {
		m.log.Warn("malformed envelope dropped", slog.String("from", fromID))
		return
	}

	m.mu.Lock()
	link := m.links[fromID]
	m.mu.Unlock()
	if link == nil {
		m.log.Debug("signal for unknown peer dropped", slog.String("from", fromID))
		return
	}

	if err := link.HandleEnvelope(env); err != nil {
		m.log.Error("negotiation error, link stalled",
			slog.String("peer", fromID), sl.Err(err))
	}
}

func (m *Manager) handleMemberLeft(id string) {
	if m.isSelf(id) {
		return
	}

	m.mu.Lock()
	link := m.links[id]
	delete(m.links, id)
	delete(m.remotes, id)
	m.mu.Unlock()

	if link == nil {
		return
	}
	link.Close()
	m.log.Info("peer left", slog.String("peer", id))

	if m.onPeerClosed != nil {
		m.onPeerClosed(id)
	}
}

// envelopeSender routes a link's outbound envelopes through the coordinator.
func (m *Manager) envelopeSender(targetID string) func(env *domain.Envelope) error {
	return func(env *domain.Envelope) error {
		raw, err := env.Encode()
		if err != nil {
			return err
		}
		return m.transport.Send(domain.Event{
			Type:     domain.EventSignal,
			TargetID: targetID,
			Envelope: raw,
		})
	}
}

func (m *Manager) newPionConn(remoteID string, src Source) (negotiator, error) {
	send := m.envelopeSender(remoteID)
	return newPionConn(m.rtc, src,
		func(candidate webrtc.ICECandidateInit) {
			// Locally gathered candidates go out as soon as they are
			// produced, before, during or after offer/answer completes.
			if err := send(domain.NewICEEnvelope(candidate)); err != nil {
				m.log.Debug("failed to send ICE candidate", sl.Err(err))
			}
		},
		func(track *webrtc.TrackRemote) {
			m.mu.Lock()
			m.remotes[remoteID] = append(m.remotes[remoteID], track)
			m.mu.Unlock()
			if m.onRemoteTrack != nil {
				m.onRemoteTrack(remoteID, track)
			}
		},
	)
}

// SendChat asks the coordinator to broadcast a chat message. The local copy
// arrives through the broadcast like everyone else's, which keeps ordering
// consistent across participants.
func (m *Manager) SendChat(text string) error {
	return m.transport.Send(domain.Event{
		Type:        domain.EventChat,
		Text:        text,
		DisplayName: m.displayName,
	})
}

// ToggleScreenShare switches between camera and screen. Both directions are a
// live track substitution on every stable link; no new offers, no new links.
func (m *Manager) ToggleScreenShare() error {
	m.mu.Lock()
	sharing := m.sharing
	m.mu.Unlock()

	if sharing {
		return m.StopScreenShare()
	}
	return m.StartScreenShare()
}

// StartScreenShare acquires the screen source and substitutes its tracks in
// place. Failure to capture cancels the share and nothing else.
func (m *Manager) StartScreenShare() error {
	if m.screenCapture == nil {
		return ErrScreenUnavailable
	}

	screen, err := m.screenCapture()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScreenUnavailable, err)
	}

	// The browser-level "stop sharing" control ends the track outside the
	// app; treat it exactly like the in-app toggle.
	screen.OnEnded(func() {
		if err := m.StopScreenShare(); err != nil {
			m.log.Error("failed to stop screen share", sl.Err(err))
		}
	})

	m.mu.Lock()
	if m.sharing {
		m.mu.Unlock()
		screen.Close()
		return nil
	}
	m.source = screen
	m.sharing = true
	m.mu.Unlock()

	m.applySource(screen)
	m.log.Info("screen share started")
	return nil
}

// StopScreenShare reverts to the camera source with the same in-place
// substitution. Idempotent.
func (m *Manager) StopScreenShare() error {
	m.mu.Lock()
	if !m.sharing {
		m.mu.Unlock()
		return nil
	}
	old := m.source
	m.source = m.camera
	m.sharing = false
	camera := m.camera
	m.mu.Unlock()

	m.applySource(camera)
	if old != camera {
		old.Close()
	}
	m.log.Info("screen share stopped")
	return nil
}

// applySource replaces the outgoing tracks of every stable link with the
// given source's, respecting the mute flags.
func (m *Manager) applySource(src Source) {
	m.mu.Lock()
	links := make([]*PeerLink, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, link)
	}
	audioEnabled := m.audioEnabled
	videoEnabled := m.videoEnabled
	m.mu.Unlock()

	for _, link := range links {
		if videoEnabled {
			if err := link.ReplaceTrack(webrtc.RTPCodecTypeVideo, src.VideoTrack()); err != nil {
				m.log.Warn("failed to replace video track",
					slog.String("peer", link.RemoteID()), sl.Err(err))
			}
		}
		if audioEnabled && src.AudioTrack() != nil {
			if err := link.ReplaceTrack(webrtc.RTPCodecTypeAudio, src.AudioTrack()); err != nil {
				m.log.Warn("failed to replace audio track",
					slog.String("peer", link.RemoteID()), sl.Err(err))
			}
		}
	}
}

// SetAudioEnabled toggles the outgoing audio track on every stable link.
func (m *Manager) SetAudioEnabled(enabled bool) {
	m.setTrackEnabled(webrtc.RTPCodecTypeAudio, enabled)
}

// SetVideoEnabled toggles the outgoing video track on every stable link.
func (m *Manager) SetVideoEnabled(enabled bool) {
	m.setTrackEnabled(webrtc.RTPCodecTypeVideo, enabled)
}

func (m *Manager) setTrackEnabled(kind webrtc.RTPCodecType, enabled bool) {
	m.mu.Lock()
	switch kind {
	case webrtc.RTPCodecTypeAudio:
		m.audioEnabled = enabled
	case webrtc.RTPCodecTypeVideo:
		m.videoEnabled = enabled
	}
	src := m.source
	links := make([]*PeerLink, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, link)
	}
	m.mu.Unlock()

	var track webrtc.TrackLocal
	if enabled {
		switch kind {
		case webrtc.RTPCodecTypeAudio:
			track = src.AudioTrack()
		case webrtc.RTPCodecTypeVideo:
			track = src.VideoTrack()
		}
	}

	for _, link := range links {
		if err := link.ReplaceTrack(kind, track); err != nil {
			m.log.Warn("failed to toggle track",
				slog.String("peer", link.RemoteID()), sl.Err(err))
		}
	}
}

func (m *Manager) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioEnabled
}

func (m *Manager) VideoEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoEnabled
}

func (m *Manager) Sharing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sharing
}

// SelfID is the session id assigned by the coordinator, empty until connected.
func (m *Manager) SelfID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selfID
}

// Links returns the current peer links keyed by remote session id.
func (m *Manager) Links() map[string]*PeerLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*PeerLink, len(m.links))
	for id, link := range m.links {
		out[id] = link
	}
	return out
}

// RemoteStreams lists the remote participants' media for the UI layer.
func (m *Manager) RemoteStreams() []RemoteStream {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RemoteStream, 0, len(m.remotes))
	for id, tracks := range m.remotes {
		copied := make([]*webrtc.TrackRemote, len(tracks))
		copy(copied, tracks)
		out = append(out, RemoteStream{SessionID: id, Tracks: copied})
	}
	return out
}

// shutdown tears down every link and the local sources, mirroring a local
// leave: all PeerLinks close together.
func (m *Manager) shutdown() {
	m.mu.Lock()
	links := m.links
	m.links = make(map[string]*PeerLink)
	m.remotes = make(map[string][]*webrtc.TrackRemote)
	source := m.source
	camera := m.camera
	m.mu.Unlock()

	for _, link := range links {
		link.Close()
	}
	if source != nil && source != camera {
		source.Close()
	}
	if camera != nil {
		camera.Close()
	}
	m.transport.Close()
}

// Close leaves the room by closing the transport; the coordinator sees the
// disconnect and runs the same cleanup path as any transport loss.
func (m *Manager) Close() error {
	m.shutdown()
	return nil
}

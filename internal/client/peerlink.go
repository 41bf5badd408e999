package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/videomeet/internal/domain"
	"github.com/immxrtalbeast/videomeet/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// State is the negotiation state of one PeerLink.
type State int

const (
	StateUninitialized State = iota
	StateNegotiating
	StateStable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNegotiating:
		return "negotiating"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var errLinkClosed = errors.New("peer link is closed")

// negotiator is the slice of a peer connection the link state machine needs.
// The real implementation wraps a pion PeerConnection; tests feed the state
// machine directly through a fake.
type negotiator interface {
	// CreateOffer builds an offer and applies it as the local description.
	CreateOffer() (webrtc.SessionDescription, error)
	// CreateAnswer builds an answer and applies it as the local description.
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	ReplaceTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error
	Close() error
}

// PeerLink is the local state for the negotiated connection to one remote
// participant. All transitions run through HandleEnvelope and SendOffer so
// coordinator events and pion callbacks can interleave safely.
type PeerLink struct {
	remoteID string
	log      *slog.Logger
	send     func(env *domain.Envelope) error

	mu            sync.Mutex
	state         State
	conn          negotiator
	remoteDescSet bool
	pendingICE    []webrtc.ICECandidateInit
}

func newPeerLink(remoteID string, send func(env *domain.Envelope) error, log *slog.Logger) *PeerLink {
	if log == nil {
		log = slog.Default()
	}
	return &PeerLink{
		remoteID: remoteID,
		log:      log.With(slog.String("peer", remoteID)),
		send:     send,
		state:    StateUninitialized,
	}
}

// attach binds the created connection, with local tracks already added, and
// moves the link into negotiating.
func (l *PeerLink) attach(conn negotiator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conn = conn
	l.state = StateNegotiating
}

// RemoteID is the remote session this link negotiates with.
func (l *PeerLink) RemoteID() string {
	return l.remoteID
}

func (l *PeerLink) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SendOffer creates and sends an offer toward the remote peer. Only the
// initiator side calls this, and only while the link is still negotiating
// with no remote description, so a repeated membership broadcast cannot cause
// glare. A failed offer leaves the link negotiating; the user can leave and
// rejoin.
func (l *PeerLink) SendOffer() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateNegotiating || l.remoteDescSet {
		return nil
	}

	offer, err := l.conn.CreateOffer()
	if err != nil {
		l.log.Error("failed to create offer", sl.Err(err))
		return fmt.Errorf("create offer: %w", err)
	}

	if err := l.send(domain.NewSDPEnvelope(offer)); err != nil {
		l.log.Error("failed to send offer", sl.Err(err))
		return fmt.Errorf("send offer: %w", err)
	}
	return nil
}

// HandleEnvelope dispatches one received negotiation envelope.
//
// An offer makes the passive side apply the remote description, answer and go
// stable. An answer completes the initiator side. ICE candidates arriving
// before a remote description exists are queued and applied afterwards in
// arrival order; once stable they apply immediately. A candidate that fails
// to apply is dropped without closing the link.
func (l *PeerLink) HandleEnvelope(env *domain.Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateClosed:
		return errLinkClosed
	case StateUninitialized:
		l.log.Warn("envelope for uninitialized link dropped")
		return nil
	}

	switch {
	case env.IsOffer():
		if err := l.applyRemoteDescription(*env.SDP); err != nil {
			return err
		}
		answer, err := l.conn.CreateAnswer()
		if err != nil {
			l.log.Error("failed to create answer", sl.Err(err))
			return fmt.Errorf("create answer: %w", err)
		}
		if err := l.send(domain.NewSDPEnvelope(answer)); err != nil {
			l.log.Error("failed to send answer", sl.Err(err))
			return fmt.Errorf("send answer: %w", err)
		}
		l.state = StateStable

	case env.IsAnswer():
		if err := l.applyRemoteDescription(*env.SDP); err != nil {
			return err
		}
		l.state = StateStable

	case env.ICE != nil:
		if !l.remoteDescSet {
			l.pendingICE = append(l.pendingICE, *env.ICE)
			return nil
		}
		if err := l.conn.AddICECandidate(*env.ICE); err != nil {
			l.log.Warn("dropping ICE candidate", sl.Err(err))
		}

	default:
		return domain.ErrMalformedEnvelope
	}

	return nil
}

func (l *PeerLink) applyRemoteDescription(desc webrtc.SessionDescription) error {
	if err := l.conn.SetRemoteDescription(desc); err != nil {
		l.log.Error("failed to set remote description", sl.Err(err))
		return fmt.Errorf("set remote description: %w", err)
	}
	l.remoteDescSet = true

	for _, candidate := range l.pendingICE {
		if err := l.conn.AddICECandidate(candidate); err != nil {
			l.log.Warn("dropping queued ICE candidate", sl.Err(err))
		}
	}
	l.pendingICE = nil
	return nil
}

// ReplaceTrack substitutes the outgoing track of the given kind in place on
// an established connection. No state change, no new offer; the remote side
// keeps the same logical track. A nil track stops sending that kind.
func (l *PeerLink) ReplaceTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateStable {
		return nil
	}
	return l.conn.ReplaceTrack(kind, track)
}

// Close releases the connection and ends the link.
func (l *PeerLink) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateClosed {
		return
	}
	l.state = StateClosed
	l.pendingICE = nil
	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			l.log.Debug("error closing peer connection", sl.Err(err))
		}
	}
}

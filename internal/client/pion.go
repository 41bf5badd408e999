package client

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// pionConn adapts a pion PeerConnection to the negotiator interface. Senders
// are kept by kind at creation so tracks can still be replaced after a
// ReplaceTrack(nil) mute left the sender without a current track.
type pionConn struct {
	pc      *webrtc.PeerConnection
	senders map[webrtc.RTPCodecType]*webrtc.RTPSender
}

func newPionConn(
	cfg webrtc.Configuration,
	src Source,
	onICE func(candidate webrtc.ICECandidateInit),
	onTrack func(track *webrtc.TrackRemote),
) (*pionConn, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	conn := &pionConn{
		pc:      pc,
		senders: make(map[webrtc.RTPCodecType]*webrtc.RTPSender),
	}

	if audio := src.AudioTrack(); audio != nil {
		sender, err := pc.AddTrack(audio)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add audio track: %w", err)
		}
		conn.senders[webrtc.RTPCodecTypeAudio] = sender
	}

	if video := src.VideoTrack(); video != nil {
		sender, err := pc.AddTrack(video)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add video track: %w", err)
		}
		conn.senders[webrtc.RTPCodecTypeVideo] = sender
	}

	// Trickle: candidates go to the peer as soon as they are produced,
	// whatever the negotiation state.
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		onICE(candidate.ToJSON())
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		onTrack(track)
	})

	return conn, nil
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (c *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) ReplaceTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error {
	sender, ok := c.senders[kind]
	if !ok {
		return fmt.Errorf("no sender for %s", kind)
	}
	return sender.ReplaceTrack(track)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

package domain

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v3"
)

// ErrMalformedEnvelope marks a negotiation payload that is not exactly one of
// an SDP description or an ICE candidate. Malformed envelopes are dropped at
// the boundary; they never reach a peer.
var ErrMalformedEnvelope = errors.New("malformed signaling envelope")

// Envelope is the negotiation payload relayed between peers. The coordinator
// treats it as opaque bytes; clients validate it on receipt. Exactly one of
// SDP or ICE is set.
type Envelope struct {
	SDP *webrtc.SessionDescription `json:"sdp,omitempty"`
	ICE *webrtc.ICECandidateInit   `json:"ice,omitempty"`
}

// ParseEnvelope decodes and validates a received envelope. Anything that is
// not exactly one offer, answer or ICE candidate is rejected.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	if len(raw) == 0 {
		return nil, ErrMalformedEnvelope
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformedEnvelope
	}

	if (env.SDP == nil) == (env.ICE == nil) {
		return nil, ErrMalformedEnvelope
	}

	if env.SDP != nil {
		switch env.SDP.Type {
		case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer:
		default:
			return nil, ErrMalformedEnvelope
		}
	}

	return &env, nil
}

// Encode serializes the envelope for relay.
func (e *Envelope) Encode() (json.RawMessage, error) {
	return json.Marshal(e)
}

// IsOffer reports whether the envelope carries an SDP offer.
func (e *Envelope) IsOffer() bool {
	return e.SDP != nil && e.SDP.Type == webrtc.SDPTypeOffer
}

// IsAnswer reports whether the envelope carries an SDP answer.
func (e *Envelope) IsAnswer() bool {
	return e.SDP != nil && e.SDP.Type == webrtc.SDPTypeAnswer
}

func NewSDPEnvelope(desc webrtc.SessionDescription) *Envelope {
	return &Envelope{SDP: &desc}
}

func NewICEEnvelope(candidate webrtc.ICECandidateInit) *Envelope {
	return &Envelope{ICE: &candidate}
}

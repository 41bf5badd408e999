package client

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// Source is one local media source (camera or screen). It is an explicit
// resource owned by the Manager and injected into each PeerLink; switching
// sources swaps it, never reassigns a global.
type Source interface {
	AudioTrack() webrtc.TrackLocal
	VideoTrack() webrtc.TrackLocal

	// OnEnded registers a callback fired when the source stops outside the
	// application's control, e.g. the browser-level "stop sharing" button.
	OnEnded(fn func())

	Close() error
}

// CaptureFunc acquires a media source. Camera acquisition failure is fatal
// for joining; screen acquisition failure only cancels the share.
type CaptureFunc func() (Source, error)

// StaticSource is a sample-fed source backed by pion static tracks. The probe
// binary and tests push frames into it; a real client would wire a capture
// pipeline to the same tracks.
type StaticSource struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	onEnded []func()
	ended   bool
}

func NewStaticSource(streamID string) (*StaticSource, error) {
	if streamID == "" {
		streamID = uuid.New().String()
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, err
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, err
	}

	return &StaticSource{audio: audio, video: video}, nil
}

// StaticCapture returns a CaptureFunc producing a fresh StaticSource.
func StaticCapture(streamID string) CaptureFunc {
	return func() (Source, error) {
		return NewStaticSource(streamID)
	}
}

func (s *StaticSource) AudioTrack() webrtc.TrackLocal { return s.audio }
func (s *StaticSource) VideoTrack() webrtc.TrackLocal { return s.video }

func (s *StaticSource) OnEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = append(s.onEnded, fn)
}

// End simulates the capture stopping outside the app, firing OnEnded hooks.
func (s *StaticSource) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	hooks := make([]func(), len(s.onEnded))
	copy(hooks, s.onEnded)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (s *StaticSource) Close() error {
	return nil
}

// WriteVideoSample feeds one video sample to the outgoing track.
func (s *StaticSource) WriteVideoSample(data []byte, duration time.Duration) error {
	return s.video.WriteSample(media.Sample{Data: data, Duration: duration})
}

// WriteAudioSample feeds one audio sample to the outgoing track.
func (s *StaticSource) WriteAudioSample(data []byte, duration time.Duration) error {
	return s.audio.WriteSample(media.Sample{Data: data, Duration: duration})
}

package meeting

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// MediaSource is the camera/microphone capture device at its interface
// boundary. The orchestrator owns one source per session and shares its
// tracks by reference across all peer links.
type MediaSource interface {
	// Tracks returns the local tracks to fan into every peer link.
	Tracks() []webrtc.TrackLocal

	// ToggleAudio flips the audio mute state and returns the new
	// enabled state.
	ToggleAudio() bool

	// ToggleVideo flips the video mute state and returns the new
	// enabled state.
	ToggleVideo() bool

	AudioEnabled() bool
	VideoEnabled() bool

	// Close releases the capture device. Called exactly once, on leave.
	Close() error
}

// MediaFactory acquires local media. Implementations return an error
// wrapping ErrMediaAccessDenied when the device or permission layer
// refuses.
type MediaFactory func() (MediaSource, error)

// StaticSource is a MediaSource backed by static pion tracks. A real
// deployment feeds samples into the tracks from a capture pipeline; the
// source itself only owns track lifecycle and mute state.
type StaticSource struct {
	mu           sync.Mutex
	audioTrack   *webrtc.TrackLocalStaticSample
	videoTrack   *webrtc.TrackLocalStaticSample
	audioEnabled bool
	videoEnabled bool
	closed       bool
}

// NewStaticSource creates an audio (opus) and a video (vp8) track.
func NewStaticSource() (MediaSource, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "meet-local",
	)
	if err != nil {
		return nil, NewError("create audio track", err)
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", "meet-local",
	)
	if err != nil {
		return nil, NewError("create video track", err)
	}

	return &StaticSource{
		audioTrack:   audio,
		videoTrack:   video,
		audioEnabled: true,
		videoEnabled: true,
	}, nil
}

func (s *StaticSource) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.audioTrack, s.videoTrack}
}

func (s *StaticSource) ToggleAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioEnabled = !s.audioEnabled
	return s.audioEnabled
}

func (s *StaticSource) ToggleVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoEnabled = !s.videoEnabled
	return s.videoEnabled
}

func (s *StaticSource) AudioEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioEnabled
}

func (s *StaticSource) VideoEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoEnabled
}

func (s *StaticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

package meeting

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

// fakeTransport is an in-memory Transport. It assigns a session id on
// Connect and answers get-ice-servers requests unless told not to.
type fakeTransport struct {
	sessionID string
	answerIce bool

	mu       sync.Mutex
	closed   bool
	incoming chan *protocol.Message
	sent     chan *protocol.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sessionID: "local-session",
		answerIce: true,
		incoming:  make(chan *protocol.Message, 64),
		sent:      make(chan *protocol.Message, 64),
	}
}

func (f *fakeTransport) Connect() error {
	msg, err := protocol.NewMessage(protocol.TypeSession, protocol.SessionPayload{
		SessionID: f.sessionID,
	})
	if err != nil {
		return err
	}
	f.deliver(msg)
	return nil
}

func (f *fakeTransport) Send(msg *protocol.Message) {
	f.sent <- msg

	if msg.Type == protocol.TypeGetIceServers && f.answerIce {
		reply, err := protocol.NewMessage(protocol.TypeIceServers, protocol.IceServersPayload{})
		if err != nil {
			panic(err)
		}
		f.deliver(reply)
	}
}

func (f *fakeTransport) Incoming() <-chan *protocol.Message {
	return f.incoming
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.incoming)
}

// deliver injects a server-to-client message.
func (f *fakeTransport) deliver(msg *protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.incoming <- msg
}

func (f *fakeTransport) deliverPayload(t *testing.T, msgType, from string, payload any) {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	require.NoError(t, err)
	msg.From = from
	f.deliver(msg)
}

// awaitSent scans outgoing messages until one of the wanted type shows
// up. ICE candidates from live gathering may interleave.
func awaitSent(t *testing.T, f *fakeTransport, msgType string) *protocol.Message {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-f.sent:
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for sent %s", msgType)
			return nil
		}
	}
}

// expectNotSent asserts no message of the given type goes out for a
// short window.
func expectNotSent(t *testing.T, f *fakeTransport, msgType string) {
	t.Helper()

	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case msg := <-f.sent:
			require.NotEqual(t, msgType, msg.Type)
		case <-deadline:
			return
		}
	}
}

type fakeMedia struct {
	mu     sync.Mutex
	tracks []webrtc.TrackLocal
	audio  bool
	video  bool
	closed int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{tracks: testTracks(), audio: true, video: true}
}

// testTracks builds one real audio track so offers carry a media section.
func testTracks() []webrtc.TrackLocal {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "meet-test",
	)
	if err != nil {
		panic(err)
	}
	return []webrtc.TrackLocal{audio}
}

func (m *fakeMedia) Tracks() []webrtc.TrackLocal { return m.tracks }

func (m *fakeMedia) ToggleAudio() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = !m.audio
	return m.audio
}

func (m *fakeMedia) ToggleVideo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.video = !m.video
	return m.video
}

func (m *fakeMedia) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio
}

func (m *fakeMedia) VideoEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.video
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *fakeMedia) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// makeOffer produces a real SDP offer from a scratch peer connection.
func makeOffer(t *testing.T) []byte {
	t.Helper()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	_, err = pc.CreateDataChannel("probe", nil)
	require.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))

	b, err := json.Marshal(pc.LocalDescription())
	require.NoError(t, err)
	return b
}

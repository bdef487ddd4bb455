package meeting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

func newTestOrchestrator(t *testing.T, transport *fakeTransport, media *fakeMedia) *Orchestrator {
	t.Helper()

	orch := New("ws://test/ws",
		WithTransportFactory(func(string) Transport { return transport }),
		WithMediaFactory(func() (MediaSource, error) { return media, nil }),
		WithConfigTimeout(time.Second),
	)
	t.Cleanup(orch.LeaveMeeting)
	return orch
}

func join(t *testing.T, orch *Orchestrator, transport *fakeTransport) {
	t.Helper()

	require.NoError(t, orch.JoinMeeting(context.Background(), "test-room", "tester"))
	awaitSent(t, transport, protocol.TypeJoinRoom)
}

func awaitEvent(t *testing.T, orch *Orchestrator, kind EventKind) Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-orch.Events():
			if event.Kind == kind {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", kind)
			return Event{}
		}
	}
}

func TestRoleForPeer(t *testing.T) {
	// For any pairing, the two sides see each other differently: one
	// learned of an already-present peer, the other of a brand-new one.
	// Exactly one of them offers.
	require.Equal(t, RoleOfferer, roleForPeer(true))
	require.Equal(t, RoleAnswerer, roleForPeer(false))
	require.NotEqual(t, roleForPeer(true), roleForPeer(false))
}

func TestJoinMeetingHandshake(t *testing.T) {
	transport := newFakeTransport()
	media := newFakeMedia()
	orch := newTestOrchestrator(t, transport, media)

	require.NoError(t, orch.JoinMeeting(context.Background(), "demo", "alice"))

	require.Equal(t, "local-session", orch.SessionID())
	require.True(t, orch.Joined())

	awaitSent(t, transport, protocol.TypeGetIceServers)

	joinMsg := awaitSent(t, transport, protocol.TypeJoinRoom)
	var payload protocol.JoinRoomPayload
	require.NoError(t, joinMsg.DecodePayload(&payload))
	require.Equal(t, "demo", payload.RoomID)
	require.Equal(t, "alice", payload.UserName)

	awaitEvent(t, orch, EventLocalMediaReady)
}

func TestJoinMeetingConfigTimeout(t *testing.T) {
	transport := newFakeTransport()
	transport.answerIce = false

	orch := New("ws://test/ws",
		WithTransportFactory(func(string) Transport { return transport }),
		WithMediaFactory(func() (MediaSource, error) { return newFakeMedia(), nil }),
		WithConfigTimeout(100*time.Millisecond),
	)

	err := orch.JoinMeeting(context.Background(), "demo", "alice")
	require.ErrorIs(t, err, ErrConfigTimeout)
	require.False(t, orch.Joined())
}

func TestJoinMeetingMediaDenied(t *testing.T) {
	transport := newFakeTransport()

	orch := New("ws://test/ws",
		WithTransportFactory(func(string) Transport { return transport }),
		WithMediaFactory(func() (MediaSource, error) {
			return nil, errors.New("permission refused")
		}),
		WithConfigTimeout(time.Second),
	)

	err := orch.JoinMeeting(context.Background(), "demo", "alice")
	require.ErrorIs(t, err, ErrMediaAccessDenied)
	require.False(t, orch.Joined())
}

func TestJoinTwiceRejected(t *testing.T) {
	transport := newFakeTransport()
	orch := newTestOrchestrator(t, transport, newFakeMedia())
	join(t, orch, transport)

	err := orch.JoinMeeting(context.Background(), "other", "alice")
	require.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestOffersEveryExistingParticipant(t *testing.T) {
	transport := newFakeTransport()
	orch := newTestOrchestrator(t, transport, newFakeMedia())
	join(t, orch, transport)

	transport.deliverPayload(t, protocol.TypeExistingParticipants, "", []protocol.Participant{
		{SessionID: "peer-1", UserName: "bob"},
		{SessionID: "peer-2", UserName: "carol"},
	})

	targets := map[string]bool{}
	for len(targets) < 2 {
		offer := awaitSent(t, transport, protocol.TypeOffer)
		targets[offer.Target] = true
	}
	require.True(t, targets["peer-1"])
	require.True(t, targets["peer-2"])

	require.Eventually(t, func() bool {
		return len(orch.Participants()) == 2
	}, 3*time.Second, 10*time.Millisecond)

	require.Equal(t, RoleOfferer, orch.lookupLink("peer-1").Role())
	require.Equal(t, RoleOfferer, orch.lookupLink("peer-2").Role())
}

func TestAnswersLaterJoiner(t *testing.T) {
	transport := newFakeTransport()
	orch := newTestOrchestrator(t, transport, newFakeMedia())
	join(t, orch, transport)

	transport.deliverPayload(t, protocol.TypeUserJoined, "", protocol.Participant{
		SessionID: "peer-1", UserName: "bob",
	})

	require.Eventually(t, func() bool {
		return orch.lookupLink("peer-1") != nil
	}, 3*time.Second, 10*time.Millisecond)

	require.Equal(t, RoleAnswerer, orch.lookupLink("peer-1").Role())
	require.Equal(t, StateNew, orch.lookupLink("peer-1").State())

	// The already-present side waits for the newcomer's offer.
	expectNotSent(t, transport, protocol.TypeOffer)
}

func TestIncomingOfferProducesAnswer(t *testing.T) {
	transport := newFakeTransport()
	orch := newTestOrchestrator(t, transport, newFakeMedia())
	join(t, orch, transport)

	transport.deliverPayload(t, protocol.TypeUserJoined, "", protocol.Participant{
		SessionID: "peer-1", UserName: "bob",
	})
	require.Eventually(t, func() bool {
		return orch.lookupLink("peer-1") != nil
	}, 3*time.Second, 10*time.Millisecond)

	offer := &protocol.Message{Type: protocol.TypeOffer, From: "peer-1", Payload: makeOffer(t)}
	transport.deliver(offer)

	answer := awaitSent(t, transport, protocol.TypeAnswer)
	require.Equal(t, "peer-1", answer.Target)
	require.Equal(t, StateNegotiating, orch.lookupLink("peer-1").State())
}

func TestOfferFromUnknownSenderDropped(t *testing.T) {
	transport := newFakeTransport()
	orch := newTestOrchestrator(t, transport, newFakeMedia())
	join(t, orch, transport)

	offer := &protocol.Message{Type: protocol.TypeOffer, From: "ghost", Payload: makeOffer(t)}
	transport.deliver(offer)

	expectNotSent(t, transport, protocol.TypeAnswer)

	// The orchestrator keeps processing after the drop.
	transport.deliverPayload(t, protocol.TypeUserJoined, "", protocol.Participant{
		SessionID: "peer-1", UserName: "bob",
	})
	require.Eventually(t, func() bool {
		return orch.lookupLink("peer-1") != nil
	}, 3*time.Second, 10*time.Millisecond)
}

func TestCandidateForUnknownPeerDropped(t *testing.T) {
	transport := newFakeTransport()
	orch := newTestOrchestrator(t, transport, newFakeMedia())
	join(t, orch, transport)

	candidate := &protocol.Message{
		Type:    protocol.TypeIceCandidate,
		From:    "ghost",
		Payload: []byte(testCandidate),
	}
	transport.deliver(candidate)

	// No crash, no answer, no link.
	expectNotSent(t, transport, protocol.TypeAnswer)
	require.Nil(t, orch.lookupLink("ghost"))
}

func TestUserLeftDestroysLink(t *testing.T) {
	transport := newFakeTransport()
	orch := newTestOrchestrator(t, transport, newFakeMedia())
	join(t, orch, transport)

	transport.deliverPayload(t, protocol.TypeUserJoined, "", protocol.Participant{
		SessionID: "peer-1", UserName: "bob",
	})
	require.Eventually(t, func() bool {
		return orch.lookupLink("peer-1") != nil
	}, 3*time.Second, 10*time.Millisecond)

	link := orch.lookupLink("peer-1")

	transport.deliverPayload(t, protocol.TypeUserLeft, "", protocol.Participant{
		SessionID: "peer-1", UserName: "bob",
	})

	event := awaitEvent(t, orch, EventParticipantRemoved)
	require.Equal(t, "peer-1", event.SessionID)
	require.Equal(t, StateClosed, link.State())
	require.Empty(t, orch.Participants())
}

func TestLeaveMeetingIdempotent(t *testing.T) {
	transport := newFakeTransport()
	media := newFakeMedia()
	orch := newTestOrchestrator(t, transport, media)

	// Leaving before ever joining is a no-op.
	orch.LeaveMeeting()

	join(t, orch, transport)
	transport.deliverPayload(t, protocol.TypeUserJoined, "", protocol.Participant{
		SessionID: "peer-1", UserName: "bob",
	})
	require.Eventually(t, func() bool {
		return orch.lookupLink("peer-1") != nil
	}, 3*time.Second, 10*time.Millisecond)

	link := orch.lookupLink("peer-1")

	orch.LeaveMeeting()
	orch.LeaveMeeting()

	require.False(t, orch.Joined())
	require.Empty(t, orch.Participants())
	require.Equal(t, StateClosed, link.State())
	require.Equal(t, 1, media.closeCount(), "local media is released exactly once")
}

func TestToggleAudioVideo(t *testing.T) {
	transport := newFakeTransport()
	media := newFakeMedia()
	orch := newTestOrchestrator(t, transport, media)

	// Not joined yet: nothing to toggle.
	require.False(t, orch.ToggleAudio())
	require.False(t, orch.ToggleVideo())

	join(t, orch, transport)

	require.False(t, orch.ToggleAudio(), "first toggle mutes")
	require.True(t, orch.ToggleAudio(), "second toggle unmutes")
	require.False(t, orch.ToggleVideo())
	require.True(t, media.AudioEnabled())
	require.False(t, media.VideoEnabled())
}

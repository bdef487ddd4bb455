package meeting

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

// Role is the negotiation role assigned to the local side of a pairing.
type Role int

const (
	// RoleOfferer creates and sends the offer.
	RoleOfferer Role = iota

	// RoleAnswerer waits for the remote offer and answers it.
	RoleAnswerer
)

func (r Role) String() string {
	if r == RoleOfferer {
		return "offerer"
	}
	return "answerer"
}

// LinkState is the lifecycle state of a peer link.
type LinkState int

const (
	// StateNew: created, no description exchanged yet.
	StateNew LinkState = iota

	// StateNegotiating: local description set, remote media not flowing.
	StateNegotiating

	// StateConnected: at least one remote media track has arrived.
	StateConnected

	// StateFailed: terminal connectivity failure, no automatic retry.
	// The link remains until explicitly closed.
	StateFailed

	// StateClosed: terminal, resources released.
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerLink is one negotiation and media state machine per remote
// participant. It wraps the pion peer connection and owns the remote
// media handle, exposed to observers by reference.
//
// Candidates arriving before the remote description is set are buffered
// and flushed once it lands; the signaling channel does not guarantee
// that delivery order matches negotiation order.
type PeerLink struct {
	remoteID  string
	userName  string
	role      Role
	pc        *webrtc.PeerConnection
	transport Transport
	emit      func(Event)

	mu            sync.Mutex
	state         LinkState
	hasRemoteDesc bool
	pending       []webrtc.ICECandidateInit
	remoteTracks  []*webrtc.TrackRemote
}

// NewPeerLink creates the pion connection for one remote participant and
// attaches the shared local tracks.
func NewPeerLink(
	remoteID, userName string,
	role Role,
	iceServers []webrtc.ICEServer,
	localTracks []webrtc.TrackLocal,
	transport Transport,
	emit func(Event),
) (*PeerLink, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: iceServers,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}

	l := &PeerLink{
		remoteID:  remoteID,
		userName:  userName,
		role:      role,
		pc:        pc,
		transport: transport,
		emit:      emit,
		state:     StateNew,
	}

	for _, track := range localTracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, NewError("add local track", err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		msg, err := protocol.NewMessage(protocol.TypeIceCandidate, c.ToJSON())
		if err != nil {
			return
		}
		msg.Target = l.remoteID
		l.transport.Send(msg)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		l.onRemoteTrack(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("connection state", "remote", l.remoteID, "state", state)
		if state == webrtc.PeerConnectionStateFailed {
			l.markFailed()
		}
	})

	return l, nil
}

func (l *PeerLink) RemoteSessionID() string { return l.remoteID }
func (l *PeerLink) UserName() string        { return l.userName }
func (l *PeerLink) Role() Role              { return l.role }

func (l *PeerLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// RemoteTracks returns the accumulated remote media handle. Valid until
// the link closes.
func (l *PeerLink) RemoteTracks() []*webrtc.TrackRemote {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*webrtc.TrackRemote, len(l.remoteTracks))
	copy(out, l.remoteTracks)
	return out
}

// SendOffer creates the local offer, applies it and ships it to the
// remote participant.
func (l *PeerLink) SendOffer() error {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return NewError("create offer", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return NewError("set local description", err)
	}

	l.setState(StateNegotiating)
	return l.sendDescription(protocol.TypeOffer, l.pc.LocalDescription())
}

// HandleOffer applies a remote offer, generates the answer and sends it
// back.
func (l *PeerLink) HandleOffer(payload []byte) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return NewError("parse offer", err)
	}

	if err := l.setRemoteDescription(offer); err != nil {
		return err
	}

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return NewError("create answer", err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return NewError("set local description", err)
	}

	l.setState(StateNegotiating)
	return l.sendDescription(protocol.TypeAnswer, l.pc.LocalDescription())
}

// HandleAnswer applies the remote answer to a previously sent offer.
func (l *PeerLink) HandleAnswer(payload []byte) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return NewError("parse answer", err)
	}
	return l.setRemoteDescription(answer)
}

// AddCandidate feeds a relayed ICE candidate into the link. Candidates
// arriving before the remote description are buffered.
func (l *PeerLink) AddCandidate(payload []byte) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return NewError("parse ICE candidate", err)
	}

	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	if !l.hasRemoteDesc {
		l.pending = append(l.pending, candidate)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.pc.AddICECandidate(candidate); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

// Close tears the link down: the negotiation engine is closed and the
// remote media handle becomes invalid. Terminal and idempotent.
func (l *PeerLink) Close() {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.state = StateClosed
	l.remoteTracks = nil
	l.pending = nil
	l.mu.Unlock()

	if err := l.pc.Close(); err != nil {
		slog.Debug("close peer connection", "remote", l.remoteID, "err", err)
	}
}

func (l *PeerLink) setRemoteDescription(desc webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}

	l.mu.Lock()
	l.hasRemoteDesc = true
	flush := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, candidate := range flush {
		if err := l.pc.AddICECandidate(candidate); err != nil {
			slog.Warn("flush buffered candidate", "remote", l.remoteID, "err", err)
		}
	}
	return nil
}

func (l *PeerLink) sendDescription(msgType string, desc *webrtc.SessionDescription) error {
	msg, err := protocol.NewMessage(msgType, desc)
	if err != nil {
		return NewError("encode description", err)
	}
	msg.Target = l.remoteID
	l.transport.Send(msg)
	return nil
}

func (l *PeerLink) onRemoteTrack(track *webrtc.TrackRemote) {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.remoteTracks = append(l.remoteTracks, track)
	first := l.state != StateConnected
	l.state = StateConnected
	l.mu.Unlock()

	slog.Debug("remote track", "remote", l.remoteID, "kind", track.Kind())

	if first {
		l.emit(Event{Kind: EventLinkStateChanged, SessionID: l.remoteID, UserName: l.userName, State: StateConnected})
		l.emit(Event{Kind: EventParticipantAdded, SessionID: l.remoteID, UserName: l.userName, Link: l})
	}
}

func (l *PeerLink) setState(state LinkState) {
	l.mu.Lock()
	if l.state == StateClosed || l.state == state {
		l.mu.Unlock()
		return
	}
	l.state = state
	l.mu.Unlock()

	l.emit(Event{Kind: EventLinkStateChanged, SessionID: l.remoteID, UserName: l.userName, State: state})
}

func (l *PeerLink) markFailed() {
	l.mu.Lock()
	if l.state == StateClosed || l.state == StateFailed {
		l.mu.Unlock()
		return
	}
	l.state = StateFailed
	l.mu.Unlock()

	slog.Warn("peer link failed", "remote", l.remoteID)
	l.emit(Event{Kind: EventLinkStateChanged, SessionID: l.remoteID, UserName: l.userName, State: StateFailed})
}

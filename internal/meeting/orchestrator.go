package meeting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

// DefaultConfigTimeout bounds the ICE configuration round trip. It is
// the only timeout enforced during a join; negotiation itself has none.
const DefaultConfigTimeout = 5 * time.Second

// roleForPeer returns the local negotiation role for a pairing. The side
// that already had the other in its roster when the pairing became known
// answers; the side learning about a brand-new participant offers. This
// yields exactly one offer per pair with no election protocol.
func roleForPeer(peerWasAlreadyPresent bool) Role {
	if peerWasAlreadyPresent {
		return RoleOfferer
	}
	return RoleAnswerer
}

// ParticipantInfo is a read-only view of one remote participant.
type ParticipantInfo struct {
	SessionID string
	UserName  string
	State     LinkState
}

// Orchestrator owns the set of peer links for the local session. It
// assigns negotiation roles, fans the shared local tracks into every
// link and exposes a typed event stream to observers.
type Orchestrator struct {
	serverURL     string
	newTransport  func(serverURL string) Transport
	mediaFactory  MediaFactory
	configTimeout time.Duration
	events        chan Event

	mu         sync.Mutex
	gen        int
	active     bool
	joined     bool
	roomID     string
	userName   string
	sessionID  string
	transport  Transport
	handler    *Handler
	media      MediaSource
	iceServers []webrtc.ICEServer
	links      map[string]*PeerLink
	stop       chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTransportFactory overrides how the signaling transport is built.
func WithTransportFactory(f func(serverURL string) Transport) Option {
	return func(o *Orchestrator) { o.newTransport = f }
}

// WithMediaFactory overrides how local media is acquired.
func WithMediaFactory(f MediaFactory) Option {
	return func(o *Orchestrator) { o.mediaFactory = f }
}

// WithConfigTimeout overrides the ICE configuration fetch timeout.
func WithConfigTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.configTimeout = d }
}

// New creates an Orchestrator for the given signaling server URL.
func New(serverURL string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		serverURL:     serverURL,
		newTransport:  func(u string) Transport { return NewTransport(u) },
		mediaFactory:  NewStaticSource,
		configTimeout: DefaultConfigTimeout,
		events:        make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Events returns the orchestrator's event stream. Slow consumers lose
// events rather than stalling signaling.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// SessionID returns the server-assigned session id, or "" before join.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Joined reports whether the session is currently in a meeting.
func (o *Orchestrator) Joined() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.joined
}

// JoinMeeting connects to the signaling server, fetches the ICE
// configuration, acquires local media and enters the room. A failure at
// any step aborts the whole join and releases everything acquired so
// far. Leaving while a join is in flight aborts it.
func (o *Orchestrator) JoinMeeting(ctx context.Context, roomID, userName string) error {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return ErrAlreadyJoined
	}
	o.active = true
	gen := o.gen
	o.mu.Unlock()

	transport := o.newTransport(o.serverURL)
	if err := transport.Connect(); err != nil {
		o.abortJoin(transport)
		return NewError("connect to server", err)
	}

	handler := NewHandler(transport)
	go handler.Start()

	sessionID, err := o.awaitSession(ctx, handler)
	if err != nil {
		o.abortJoin(transport)
		return err
	}

	iceServers, err := o.fetchIceServers(ctx, transport, handler)
	if err != nil {
		o.abortJoin(transport)
		return err
	}

	media, err := o.mediaFactory()
	if err != nil {
		o.abortJoin(transport)
		return WrapError("acquire media", ErrMediaAccessDenied, err.Error())
	}

	o.mu.Lock()
	if o.gen != gen {
		// Left while the join was suspended; discard everything.
		o.mu.Unlock()
		media.Close()
		transport.Close()
		return ErrJoinAborted
	}
	o.joined = true
	o.roomID = roomID
	o.userName = userName
	o.sessionID = sessionID
	o.transport = transport
	o.handler = handler
	o.media = media
	o.iceServers = toICEServers(iceServers)
	o.links = make(map[string]*PeerLink)
	o.stop = make(chan struct{})
	stop := o.stop
	o.mu.Unlock()

	go o.run(handler, stop)

	msg, err := protocol.NewMessage(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID:   roomID,
		UserName: userName,
	})
	if err != nil {
		o.LeaveMeeting()
		return NewError("encode join", err)
	}
	transport.Send(msg)

	o.emit(Event{Kind: EventLocalMediaReady})
	slog.Info("joined meeting", "room", roomID, "session", sessionID)
	return nil
}

// LeaveMeeting closes every peer link, stops local media and closes the
// transport. Idempotent and always succeeds, including while a join is
// still in flight or when never joined.
func (o *Orchestrator) LeaveMeeting() {
	o.mu.Lock()
	o.gen++
	if !o.active {
		o.mu.Unlock()
		return
	}
	o.active = false
	o.joined = false
	links := o.links
	media := o.media
	transport := o.transport
	stop := o.stop
	o.links = nil
	o.media = nil
	o.transport = nil
	o.handler = nil
	o.stop = nil
	o.roomID = ""
	o.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	for _, link := range links {
		link.Close()
	}
	if media != nil {
		media.Close()
	}
	if transport != nil {
		transport.Close()
	}
	slog.Info("left meeting")
}

// ToggleAudio flips the local audio mute state and returns the new
// enabled state. Returns false when not joined.
func (o *Orchestrator) ToggleAudio() bool {
	o.mu.Lock()
	media := o.media
	o.mu.Unlock()
	if media == nil {
		return false
	}
	return media.ToggleAudio()
}

// ToggleVideo flips the local video mute state and returns the new
// enabled state. Returns false when not joined.
func (o *Orchestrator) ToggleVideo() bool {
	o.mu.Lock()
	media := o.media
	o.mu.Unlock()
	if media == nil {
		return false
	}
	return media.ToggleVideo()
}

// LocalMedia returns the local media source, or nil before join.
func (o *Orchestrator) LocalMedia() MediaSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.media
}

// Participants lists the known remote participants and their link states.
func (o *Orchestrator) Participants() []ParticipantInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]ParticipantInfo, 0, len(o.links))
	for _, link := range o.links {
		out = append(out, ParticipantInfo{
			SessionID: link.RemoteSessionID(),
			UserName:  link.UserName(),
			State:     link.State(),
		})
	}
	return out
}

func (o *Orchestrator) awaitSession(ctx context.Context, handler *Handler) (string, error) {
	select {
	case sessionID := <-handler.Session:
		return sessionID, nil
	case errMsg := <-handler.Errors:
		return "", WrapError("await session", ErrSignalingError, errMsg)
	case <-time.After(o.configTimeout):
		return "", NewError("await session", ErrConfigTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (o *Orchestrator) fetchIceServers(ctx context.Context, transport Transport, handler *Handler) ([]protocol.IceServer, error) {
	transport.Send(&protocol.Message{Type: protocol.TypeGetIceServers})

	select {
	case servers := <-handler.IceServers:
		return servers, nil
	case errMsg := <-handler.Errors:
		return nil, WrapError("fetch ice servers", ErrSignalingError, errMsg)
	case <-time.After(o.configTimeout):
		return nil, NewError("fetch ice servers", ErrConfigTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// abortJoin releases partial resources after a failed join step.
func (o *Orchestrator) abortJoin(transport Transport) {
	if transport != nil {
		transport.Close()
	}
	o.mu.Lock()
	o.active = false
	o.mu.Unlock()
}

// run is the orchestrator's event loop. Handlers run to completion one
// at a time, so a handler body never observes a half-updated link set.
func (o *Orchestrator) run(handler *Handler, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case roster := <-handler.Roster:
			o.onRoster(roster)

		case p := <-handler.Joined:
			o.onUserJoined(p)

		case p := <-handler.Left:
			o.onUserLeft(p)

		case env := <-handler.Offer:
			o.onOffer(env)

		case env := <-handler.Answer:
			o.onAnswer(env)

		case env := <-handler.Candidate:
			o.onCandidate(env)

		case errMsg := <-handler.Errors:
			slog.Warn("signaling error", "err", errMsg)
		}
	}
}

// onRoster handles the snapshot returned by join: the local session is
// the offerer towards every participant that was already present.
func (o *Orchestrator) onRoster(roster []protocol.Participant) {
	slog.Info("existing participants", "count", len(roster))

	for _, p := range roster {
		link, err := o.createLink(p, roleForPeer(true))
		if err != nil {
			slog.Error("create peer link", "remote", p.SessionID, "err", err)
			continue
		}
		if link == nil {
			continue
		}
		if err := link.SendOffer(); err != nil {
			slog.Error("send offer", "remote", p.SessionID, "err", err)
		}
	}
}

// onUserJoined handles a later join: the already-present local side
// answers, the newcomer will offer.
func (o *Orchestrator) onUserJoined(p protocol.Participant) {
	slog.Info("user joined", "session", p.SessionID, "name", p.UserName)

	if _, err := o.createLink(p, roleForPeer(false)); err != nil {
		slog.Error("create peer link", "remote", p.SessionID, "err", err)
	}
}

func (o *Orchestrator) onUserLeft(p protocol.Participant) {
	slog.Info("user left", "session", p.SessionID, "name", p.UserName)

	o.mu.Lock()
	link := o.links[p.SessionID]
	delete(o.links, p.SessionID)
	o.mu.Unlock()

	if link == nil {
		return
	}
	link.Close()
	o.emit(Event{Kind: EventParticipantRemoved, SessionID: p.SessionID, UserName: p.UserName})
}

// onOffer requires an existing link for the sender, created by the
// user-joined path. A missing link means a late or duplicate envelope;
// it is logged and dropped.
func (o *Orchestrator) onOffer(env *SignalEnvelope) {
	link := o.lookupLink(env.From)
	if link == nil {
		slog.Warn("offer for unknown peer, dropping", "from", env.From)
		return
	}

	if err := link.HandleOffer(env.Payload); err != nil {
		slog.Error("handle offer", "from", env.From, "err", err)
	}
}

func (o *Orchestrator) onAnswer(env *SignalEnvelope) {
	link := o.lookupLink(env.From)
	if link == nil {
		slog.Warn("answer for unknown peer, dropping", "from", env.From)
		return
	}
	if link.Role() != RoleOfferer {
		slog.Warn("answer for link not awaiting one, dropping", "from", env.From)
		return
	}

	if err := link.HandleAnswer(env.Payload); err != nil {
		slog.Error("handle answer", "from", env.From, "err", err)
	}
}

func (o *Orchestrator) onCandidate(env *SignalEnvelope) {
	link := o.lookupLink(env.From)
	if link == nil {
		slog.Debug("candidate for unknown peer, dropping", "from", env.From)
		return
	}

	if err := link.AddCandidate(env.Payload); err != nil {
		slog.Warn("add candidate", "from", env.From, "err", err)
	}
}

// createLink builds a peer link for a participant and records it. A nil
// link with nil error means one already existed.
func (o *Orchestrator) createLink(p protocol.Participant, role Role) (*PeerLink, error) {
	o.mu.Lock()
	if !o.joined {
		o.mu.Unlock()
		return nil, ErrNotJoined
	}
	if _, exists := o.links[p.SessionID]; exists {
		o.mu.Unlock()
		slog.Warn("peer link already exists", "remote", p.SessionID)
		return nil, nil
	}
	iceServers := o.iceServers
	transport := o.transport
	var tracks []webrtc.TrackLocal
	if o.media != nil {
		tracks = o.media.Tracks()
	}
	o.mu.Unlock()

	link, err := NewPeerLink(p.SessionID, p.UserName, role, iceServers, tracks, transport, o.emit)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if !o.joined {
		// Left while the link was being built.
		o.mu.Unlock()
		link.Close()
		return nil, ErrNotJoined
	}
	o.links[p.SessionID] = link
	o.mu.Unlock()

	slog.Debug("peer link created", "remote", p.SessionID, "role", role)
	return link, nil
}

func (o *Orchestrator) lookupLink(sessionID string) *PeerLink {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.links[sessionID]
}

func (o *Orchestrator) emit(event Event) {
	select {
	case o.events <- event:
	default:
		slog.Debug("event stream full, dropping", "kind", event.Kind)
	}
}

func toICEServers(servers []protocol.IceServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		entry := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			entry.Username = s.Username
			entry.Credential = s.Credential
		}
		out = append(out, entry)
	}
	return out
}

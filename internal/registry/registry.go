package registry

import (
	"context"
	"log/slog"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

// Envelope pairs an inbound message with the client that sent it.
type Envelope struct {
	Client  *Client
	Message *protocol.Message
}

// Registry is the central brain of the signaling server. It owns the
// room->participants and session->client mappings and relays negotiation
// envelopes between sessions.
//
// All state is owned by the single goroutine running Run, so a join or
// leave is never observable half-applied.
type Registry struct {
	// rooms maps room ids to Room instances.
	rooms map[string]*Room

	// clients maps session ids to connected clients, joined or not.
	clients map[string]*Client

	// iceServers is the process-wide ICE configuration, read at startup.
	iceServers []protocol.IceServer

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Inbound carries messages from client read pumps.
	Inbound chan *Envelope
}

// New creates a Registry. Call Run to start it.
func New(iceServers []protocol.IceServer) *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		clients:    make(map[string]*Client),
		iceServers: iceServers,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Envelope),
	}
}

// Run starts the registry's main processing loop. This is the single
// goroutine that manages all room and session state. It returns when ctx
// is cancelled.
func (r *Registry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-r.Register:
			r.clients[client.SessionID] = client
			slog.Info("session connected", "session", client.SessionID)

			// Announce the assigned session id before anything else.
			r.send(client, mustMessage(protocol.TypeSession, protocol.SessionPayload{
				SessionID: client.SessionID,
			}))

		case client := <-r.Unregister:
			delete(r.clients, client.SessionID)
			r.leave(client)
			close(client.Send)
			slog.Info("session disconnected", "session", client.SessionID)

		case env := <-r.Inbound:
			r.handle(env.Client, env.Message)
		}
	}
}

func (r *Registry) handle(client *Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinRoom:
		var payload protocol.JoinRoomPayload
		if err := msg.DecodePayload(&payload); err != nil {
			r.sendError(client, "malformed join-room payload")
			return
		}
		r.join(client, payload.RoomID, payload.UserName)

	case protocol.TypeGetIceServers:
		slog.Debug("ice configuration requested", "session", client.SessionID)
		r.send(client, mustMessage(protocol.TypeIceServers, protocol.IceServersPayload{
			IceServers: r.iceServers,
		}))

	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeIceCandidate:
		r.relay(client, msg)

	default:
		slog.Warn("unknown message type", "type", msg.Type, "session", client.SessionID)
	}
}

// join adds the client to a room, creating the room if needed. The new
// member receives the pre-join roster; every existing member receives a
// user-joined notification. Both happen before the registry picks up the
// next event.
func (r *Registry) join(client *Client, roomID, userName string) {
	if roomID == "" {
		r.sendError(client, "room id must not be empty")
		return
	}

	if client.RoomID != "" {
		r.sendError(client, "session already joined a room")
		return
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID}
		r.rooms[roomID] = room
		roomsActive.Inc()
		slog.Info("room created", "room", roomID)
	}

	if room.contains(client.SessionID) {
		r.sendError(client, "duplicate session in room")
		return
	}

	// Snapshot before the mutation: the joiner is never in its own roster.
	existing := room.roster("")

	room.add(&participant{
		sessionID: client.SessionID,
		userName:  userName,
		client:    client,
	})
	client.RoomID = roomID
	participantsActive.Inc()

	r.send(client, mustMessage(protocol.TypeExistingParticipants, existing))

	joined := mustMessage(protocol.TypeUserJoined, protocol.Participant{
		SessionID: client.SessionID,
		UserName:  userName,
	})
	for _, p := range room.participants {
		if p.sessionID == client.SessionID {
			continue
		}
		r.send(p.client, joined)
	}

	slog.Info("participant joined", "room", roomID, "session", client.SessionID, "name", userName, "size", len(room.participants))
}

// leave removes the client from whichever room contains it. No-op when
// the session is not a member of any room, so the disconnect path and an
// explicit leave can share it safely.
func (r *Registry) leave(client *Client) {
	if client.RoomID == "" {
		return
	}

	room, ok := r.rooms[client.RoomID]
	if !ok {
		client.RoomID = ""
		return
	}

	removed := room.remove(client.SessionID)
	client.RoomID = ""
	if removed == nil {
		return
	}
	participantsActive.Dec()

	if room.empty() {
		delete(r.rooms, room.ID)
		roomsActive.Dec()
		slog.Info("room deleted", "room", room.ID)
		return
	}

	left := mustMessage(protocol.TypeUserLeft, protocol.Participant{
		SessionID: removed.sessionID,
		UserName:  removed.userName,
	})
	for _, p := range room.participants {
		r.send(p.client, left)
	}

	slog.Info("participant left", "room", room.ID, "session", removed.sessionID, "name", removed.userName)
}

// relay forwards a negotiation envelope verbatim to its target session,
// stamping the sender id. Envelopes are soft-fail: if the target has no
// open channel the message is silently dropped, since the recipient may
// no longer exist by the time a candidate arrives.
func (r *Registry) relay(sender *Client, msg *protocol.Message) {
	target, ok := r.clients[msg.Target]
	if !ok {
		slog.Debug("relay target gone", "type", msg.Type, "target", msg.Target)
		envelopesDropped.Inc()
		return
	}

	r.send(target, &protocol.Message{
		Type:    msg.Type,
		From:    sender.SessionID,
		Payload: msg.Payload,
	})
	envelopesRelayed.Inc()
}

// send queues a message without blocking the registry loop. A client
// whose write pump has fallen 256 messages behind loses the message.
func (r *Registry) send(client *Client, msg *protocol.Message) {
	select {
	case client.Send <- msg:
	default:
		slog.Warn("send buffer full, dropping message", "session", client.SessionID, "type", msg.Type)
		envelopesDropped.Inc()
	}
}

func (r *Registry) sendError(client *Client, text string) {
	slog.Warn("rejected request", "session", client.SessionID, "reason", text)
	r.send(client, mustMessage(protocol.TypeError, protocol.ErrorPayload{Error: text}))
}

// mustMessage builds a message for payload types that cannot fail to
// marshal.
func mustMessage(t string, payload any) *protocol.Message {
	msg, err := protocol.NewMessage(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

package protocol

import "encoding/json"

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
//
// From is stamped by the server when relaying negotiation messages so
// the recipient can address its reply. Target is set by the sender of a
// relayed message and names the session it should be delivered to.
type Message struct {
	Type    string          `json:"type"`
	From    string          `json:"from,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	// Server to client, sent once per connection before anything else.
	TypeSession = "session"

	TypeJoinRoom             = "join-room"
	TypeExistingParticipants = "existing-participants"
	TypeUserJoined           = "user-joined"
	TypeUserLeft             = "user-left"

	TypeGetIceServers = "get-ice-servers"
	TypeIceServers    = "ice-servers"

	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeIceCandidate = "ice-candidate"

	TypeError = "error"
)

// IsSignal reports whether a message type is a negotiation envelope that
// the server relays verbatim without inspecting the payload.
func IsSignal(t string) bool {
	return t == TypeOffer || t == TypeAnswer || t == TypeIceCandidate
}

// SessionPayload announces the server-assigned session id.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
}

// JoinRoomPayload is sent by a client to enter a room.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// Participant identifies one room member.
type Participant struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
}

// IceServer is one entry of the ICE configuration. A STUN entry carries
// only URLs; a TURN entry adds credentials.
type IceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// IceServersPayload answers a get-ice-servers request.
type IceServersPayload struct {
	IceServers []IceServer `json:"iceServers"`
}

// ErrorPayload carries error messages from the server.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage creates a Message with the payload marshalled to JSON.
func NewMessage(t string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

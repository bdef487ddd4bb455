package meeting

import (
	"log/slog"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

// SignalEnvelope is a relayed negotiation message with its sender stamped.
type SignalEnvelope struct {
	From    string
	Payload []byte
}

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	transport  Transport
	Session    chan string
	Roster     chan []protocol.Participant
	Joined     chan protocol.Participant
	Left       chan protocol.Participant
	IceServers chan []protocol.IceServer
	Offer      chan *SignalEnvelope
	Answer     chan *SignalEnvelope
	Candidate  chan *SignalEnvelope
	Errors     chan string
}

// NewHandler creates a new message handler over the transport.
func NewHandler(transport Transport) *Handler {
	return &Handler{
		transport:  transport,
		Session:    make(chan string, 1),
		Roster:     make(chan []protocol.Participant, 1),
		Joined:     make(chan protocol.Participant, 8),
		Left:       make(chan protocol.Participant, 8),
		IceServers: make(chan []protocol.IceServer, 1),
		Offer:      make(chan *SignalEnvelope, 32),
		Answer:     make(chan *SignalEnvelope, 32),
		Candidate:  make(chan *SignalEnvelope, 64),
		Errors:     make(chan string, 1),
	}
}

// Start begins listening to incoming messages and routing them. It
// returns when the transport's incoming channel closes.
func (h *Handler) Start() {
	for msg := range h.transport.Incoming() {
		switch msg.Type {

		case protocol.TypeSession:
			var payload protocol.SessionPayload
			if err := msg.DecodePayload(&payload); err != nil {
				slog.Warn("malformed session payload", "err", err)
				continue
			}
			h.Session <- payload.SessionID

		case protocol.TypeExistingParticipants:
			var roster []protocol.Participant
			if err := msg.DecodePayload(&roster); err != nil {
				slog.Warn("malformed roster payload", "err", err)
				continue
			}
			h.Roster <- roster

		case protocol.TypeUserJoined:
			var p protocol.Participant
			if err := msg.DecodePayload(&p); err != nil {
				slog.Warn("malformed user-joined payload", "err", err)
				continue
			}
			h.Joined <- p

		case protocol.TypeUserLeft:
			var p protocol.Participant
			if err := msg.DecodePayload(&p); err != nil {
				slog.Warn("malformed user-left payload", "err", err)
				continue
			}
			h.Left <- p

		case protocol.TypeIceServers:
			var payload protocol.IceServersPayload
			if err := msg.DecodePayload(&payload); err != nil {
				slog.Warn("malformed ice-servers payload", "err", err)
				continue
			}
			select {
			case h.IceServers <- payload.IceServers:
			default:
			}

		case protocol.TypeOffer:
			h.Offer <- &SignalEnvelope{From: msg.From, Payload: msg.Payload}

		case protocol.TypeAnswer:
			h.Answer <- &SignalEnvelope{From: msg.From, Payload: msg.Payload}

		case protocol.TypeIceCandidate:
			h.Candidate <- &SignalEnvelope{From: msg.From, Payload: msg.Payload}

		case protocol.TypeError:
			var payload protocol.ErrorPayload
			if err := msg.DecodePayload(&payload); err != nil {
				h.pushError("unknown error from server")
				continue
			}
			h.pushError(payload.Error)

		default:
			slog.Debug("ignoring unknown message type", "type", msg.Type)
		}
	}
}

func (h *Handler) pushError(text string) {
	select {
	case h.Errors <- text:
	default:
	}
}

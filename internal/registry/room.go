package registry

import "github.com/pkt369/google-meeting-mock/internal/protocol"

// participant is one room member. Owned exclusively by its room.
type participant struct {
	sessionID string
	userName  string
	client    *Client
}

// Room holds the members of one meeting in join order. A room is created
// on the first join to an unseen id and deleted the moment it empties.
type Room struct {
	// ID is the room identifier. Free-form; the human-facing generator
	// produces hyphenated word codes but any string is accepted.
	ID string

	// participants in join order. Session ids are pairwise distinct.
	participants []*participant
}

func (r *Room) contains(sessionID string) bool {
	for _, p := range r.participants {
		if p.sessionID == sessionID {
			return true
		}
	}
	return false
}

func (r *Room) add(p *participant) {
	r.participants = append(r.participants, p)
}

// remove takes a participant out of the room and returns it, or nil if
// the session is not a member.
func (r *Room) remove(sessionID string) *participant {
	for i, p := range r.participants {
		if p.sessionID == sessionID {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return p
		}
	}
	return nil
}

func (r *Room) empty() bool {
	return len(r.participants) == 0
}

// roster returns the members in join order, excluding the given session.
func (r *Room) roster(exceptSessionID string) []protocol.Participant {
	out := make([]protocol.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.sessionID == exceptSessionID {
			continue
		}
		out = append(out, protocol.Participant{SessionID: p.sessionID, UserName: p.userName})
	}
	return out
}

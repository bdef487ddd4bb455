package meeting

// EventKind classifies orchestrator events delivered to observers (the
// UI layer).
type EventKind int

const (
	// EventLocalMediaReady fires once per join, after local media is
	// acquired.
	EventLocalMediaReady EventKind = iota

	// EventParticipantAdded fires when a remote participant's media
	// starts flowing (its peer link reached the connected state).
	EventParticipantAdded

	// EventParticipantRemoved fires when a participant leaves and its
	// peer link is destroyed.
	EventParticipantRemoved

	// EventLinkStateChanged fires on every peer link state transition.
	EventLinkStateChanged
)

func (k EventKind) String() string {
	switch k {
	case EventLocalMediaReady:
		return "local-media-ready"
	case EventParticipantAdded:
		return "participant-added"
	case EventParticipantRemoved:
		return "participant-removed"
	case EventLinkStateChanged:
		return "link-state-changed"
	default:
		return "unknown"
	}
}

// Event is one entry of the orchestrator's typed event stream.
type Event struct {
	Kind      EventKind
	SessionID string
	UserName  string

	// State is set for EventLinkStateChanged.
	State LinkState

	// Link carries the peer link for EventParticipantAdded, so the UI
	// layer can reach the remote media handle by reference.
	Link *PeerLink
}

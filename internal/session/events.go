package session

// EventType identifies session events a host can subscribe to.
type EventType int

const (
	// EventStateChanged fires on every transition; data is the new State.
	EventStateChanged EventType = iota
	// EventPreviewUpdated fires when the live preview path is recomputed;
	// data is the preview as []geometry.Point2D in world coordinates.
	EventPreviewUpdated
	// EventPathChanged fires when confirmed points are appended or undone;
	// data is a copy of the trace path.
	EventPathChanged
	// EventNotice carries informational messages, e.g. a search that ran
	// out of budget; data is a string.
	EventNotice
	// EventCommitted fires after a feature is created or updated; data is
	// the Result.
	EventCommitted
)

// Listener is called when an event occurs.
type Listener func(data interface{})

// On registers a listener for the given event type.
func (s *Session) On(event EventType, listener Listener) {
	s.listeners[event] = append(s.listeners[event], listener)
}

func (s *Session) emit(event EventType, data interface{}) {
	for _, listener := range s.listeners[event] {
		listener(data)
	}
}

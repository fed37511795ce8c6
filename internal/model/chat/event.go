package chat

// EventType names one UI sink call.
type EventType string

const (
	EventMessage       EventType = "message"
	EventIndicatorShow EventType = "indicator_show"
	EventIndicatorHide EventType = "indicator_hide"
	EventPosters       EventType = "posters"
)

// Event is the wire form of a sink call, used by the REST, SSE and WebSocket transports.
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Posters []Poster  `json:"posters,omitempty"`
}

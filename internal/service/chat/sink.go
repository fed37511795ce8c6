package chat

import (
	"sync"

	"github.com/moodcine/backend/internal/model/chat"
)

// EventFunc adapts a function receiving wire events to a Sink.
type EventFunc func(chat.Event)

func (f EventFunc) AppendMessage(msg chat.Message) {
	f(chat.Event{Type: chat.EventMessage, Message: &msg})
}

func (f EventFunc) ShowIndicator() {
	f(chat.Event{Type: chat.EventIndicatorShow})
}

func (f EventFunc) HideIndicator() {
	f(chat.Event{Type: chat.EventIndicatorHide})
}

func (f EventFunc) ShowPosters(posters []chat.Poster) {
	f(chat.Event{Type: chat.EventPosters, Posters: append([]chat.Poster(nil), posters...)})
}

// Recorder is a Sink that keeps every call as an event.
type Recorder struct {
	mu     sync.Mutex
	events []chat.Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{events: make([]chat.Event, 0, 8)}
}

func (r *Recorder) record(e chat.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) AppendMessage(msg chat.Message) { EventFunc(r.record).AppendMessage(msg) }
func (r *Recorder) ShowIndicator() { EventFunc(r.record).ShowIndicator() }
func (r *Recorder) HideIndicator() { EventFunc(r.record).HideIndicator() }
func (r *Recorder) ShowPosters(posters []chat.Poster) { EventFunc(r.record).ShowPosters(posters) }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []chat.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Event(nil), r.events...)
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]chat.Message, 0, len(r.events))
	for _, e := range r.events {
		if e.Type == chat.EventMessage && e.Message != nil {
			msgs = append(msgs, *e.Message)
		}
	}
	return msgs
}

// teeSink forwards to the wrapped sink and copies messages to onMessage.
type teeSink struct {
	Sink
	onMessage func(chat.Message)
}

func (t teeSink) AppendMessage(msg chat.Message) {
	t.onMessage(msg)
	t.Sink.AppendMessage(msg)
}

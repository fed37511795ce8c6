package chat

import "time"

// Speaker tags who a rendered message belongs to.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Message is one rendered chat bubble, kept in the session transcript.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Poster is resolved artwork for a recommended title.
type Poster struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

package chat

import "strings"

// ModeChat marks requests sent after a recommendation was delivered.
const ModeChat = "chat"

// NoSubEmotion is the classifier's sub_emotion value meaning "no secondary emotion".
const NoSubEmotion = "세부감정 없음"

// ClassifyRequest is the body POSTed to the classification endpoint.
// Mode is empty while emotions are being collected.
type ClassifyRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=128"`
	Text      string `json:"text" validate:"required,max=2000"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=chat"`
}

// IsChat reports whether the request belongs to the post-recommendation phase.
func (r ClassifyRequest) IsChat() bool {
	return r.Mode == ModeChat
}

// Movie is one recommended title. Only Title is guaranteed.
type Movie struct {
	Title  string `json:"title"`
	Genre  string `json:"genre,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ClassifyResponse is the classification endpoint's answer.
// The finalization fields are only set when Final is true.
type ClassifyResponse struct {
	Reply      string  `json:"reply"`
	Final      bool    `json:"final,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
	SubEmotion string  `json:"sub_emotion,omitempty"`
	Movies     []Movie `json:"movies,omitempty"`
}

// HasSubEmotion reports whether a secondary emotion is present and not the sentinel.
func (r ClassifyResponse) HasSubEmotion() bool {
	sub := strings.TrimSpace(r.SubEmotion)
	return sub != "" && sub != NoSubEmotion
}

// Titles returns movie titles in the order received.
func (r ClassifyResponse) Titles() []string {
	titles := make([]string, 0, len(r.Movies))
	for _, m := range r.Movies {
		titles = append(titles, m.Title)
	}
	return titles
}

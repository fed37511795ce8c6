package chat

import "time"

// Phase is the two-valued conversation state of a session.
type Phase string

const (
	// PhaseCollectingEmotion gathers free-text turns until the classifier finalizes.
	PhaseCollectingEmotion Phase = "collecting_emotion"
	// PhasePostRecommendation is terminal: every later turn is plain chat.
	PhasePostRecommendation Phase = "post_recommendation"
)

// Snapshot captures the observable state of a session at one point in time.
type Snapshot struct {
	ID        string    `json:"id"`
	Phase     Phase     `json:"phase"`
	TurnCount int       `json:"turnCount"`
	CreatedAt time.Time `json:"createdAt"`
}

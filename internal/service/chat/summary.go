package chat

import (
	"fmt"
	"strings"

	"github.com/moodcine/backend/internal/model/chat"
)

// ComposeSummary renders the recommendation message of a finalizing turn: summary,
// primary emotion, secondary emotion when there is one, then the movie list.
func ComposeSummary(resp chat.ClassifyResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧠 요약: %s\n", resp.Summary)
	fmt.Fprintf(&b, "🎭 대표 감정: %s\n", resp.Emotion)
	if resp.HasSubEmotion() {
		fmt.Fprintf(&b, "💫 세부 감정: %s\n", resp.SubEmotion)
	}
	b.WriteString("🎥 추천 영화 목록:\n")
	for _, m := range resp.Movies {
		fmt.Fprintf(&b, "- %s\n", m.Title)
	}
	return b.String()
}

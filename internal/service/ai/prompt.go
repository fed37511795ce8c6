package ai

import (
	"fmt"
	"strings"
)

// PromptTemplate shapes the companion's voice for one representative emotion.
type PromptTemplate struct {
	Mood         string
	Hints        []string
	FallbackLine string
}

// PromptManager holds the templates keyed by emotion label.
type PromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPromptManager creates a manager with the default templates.
func NewPromptManager() *PromptManager {
	pm := &PromptManager{templates: make(map[string]*PromptTemplate)}
	pm.loadDefaultTemplates()
	return pm
}

// FallbackReply is used when no model is configured or the model fails.
func (pm *PromptManager) FallbackReply(emotion string) string {
	if t, ok := pm.templates[emotion]; ok {
		return t.FallbackLine
	}
	return "그렇구나! 추천한 영화 중에 궁금한 게 있으면 언제든 물어봐 🎬"
}

// BuildSystemPrompt creates the system prompt for a session whose mood is emotion.
func (pm *PromptManager) BuildSystemPrompt(emotion string) string {
	base := `너는 사용자의 기분에 맞는 영화를 추천해 주는 다정한 챗봇이야.
이미 영화 추천은 끝났고, 지금은 추천 이후의 가벼운 대화를 나누고 있어.
반말로 짧게 두세 문장 이내로 답하고, 영화 이야기로 자연스럽게 이어가.`

	t, ok := pm.templates[emotion]
	if !ok {
		return base
	}

	return fmt.Sprintf(`%s

사용자의 대표 감정: %s
대화 요령:
- %s`, base, t.Mood, strings.Join(t.Hints, "\n- "))
}

func (pm *PromptManager) loadDefaultTemplates() {
	pm.templates["분노"] = &PromptTemplate{
		Mood:         "분노",
		Hints:        []string{"화난 마음을 먼저 인정해 줘", "통쾌한 장면 이야기로 기분 전환을 도와"},
		FallbackLine: "속상했던 마음, 영화 보면서 시원하게 털어버리자! 🔥",
	}
	pm.templates["불안"] = &PromptTemplate{
		Mood:         "불안",
		Hints:        []string{"차분하고 안정감 있는 말투를 유지해", "괜찮다는 확신을 부드럽게 전해"},
		FallbackLine: "천천히 숨 한번 쉬고, 편안하게 영화 한 편 보자 🍀",
	}
	pm.templates["슬픔"] = &PromptTemplate{
		Mood:         "슬픔",
		Hints:        []string{"공감과 위로를 우선해", "억지로 기운 내라고 하지 마"},
		FallbackLine: "오늘은 마음껏 쉬어도 돼. 영화가 작은 위로가 되면 좋겠어 🌙",
	}
	pm.templates["외로움"] = &PromptTemplate{
		Mood:         "외로움",
		Hints:        []string{"곁에 있다는 느낌을 주는 따뜻한 말투", "사용자의 이야기를 더 들어주려고 해"},
		FallbackLine: "나랑 얘기하는 동안은 혼자가 아니야. 영화 보고 감상도 들려줘 💌",
	}
	pm.templates["심심"] = &PromptTemplate{
		Mood:         "심심",
		Hints:        []string{"밝고 장난스러운 말투", "영화 속 재밌는 포인트를 짚어 줘"},
		FallbackLine: "심심할 틈 없게 재밌는 걸로 골랐어! 팝콘 준비됐지? 🍿",
	}
	pm.templates["탐구"] = &PromptTemplate{
		Mood:         "탐구",
		Hints:        []string{"호기심을 자극하는 질문을 던져", "영화의 배경 지식을 짧게 곁들여"},
		FallbackLine: "보고 나면 궁금한 게 더 생길걸? 같이 이야기해 보자 🔭",
	}
	pm.templates["행복"] = &PromptTemplate{
		Mood:         "행복",
		Hints:        []string{"즐거운 기분을 함께 나눠", "신나는 말투로 호응해"},
		FallbackLine: "좋은 기분 그대로 영화까지 즐기자! ✨",
	}
}

package emotion

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/goccy/go-json"

	analysis "github.com/moodcine/backend/internal/analysis/emotion"
	"github.com/moodcine/backend/internal/logging"
)

// Source names where a Guidance came from.
type Source string

const (
	SourceModel   Source = "model"
	SourceKeyword Source = "keyword"
)

// Config 控制情绪分析服务的行为。
type Config struct {
	Enabled      bool
	HistoryLimit int
}

// Guidance 表示对一段对话的情绪判断。
type Guidance struct {
	Primary    analysis.Decision
	Secondary  analysis.Decision
	Confidence float32
	Reason     string
	Source     Source
}

// Service 使用大模型判断对话情绪，并在必要时回退到关键词规则。
type Service struct {
	enabled      bool
	classifier   compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
}

// NewService 创建情绪分析服务。chatModel 可以为 nil，此时只使用关键词规则。
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 6
	}

	svc := &Service{
		enabled:      cfg.Enabled && chatModel != nil,
		historyLimit: historyLimit,
	}

	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(emotionSystemPrompt),
		schema.UserMessage(emotionUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回是否启用了大模型判断。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Analyze 判断用户至今为止所有发言的情绪。
func (s *Service) Analyze(ctx context.Context, turns []string) Guidance {
	if !s.Enabled() {
		return Fallback(turns)
	}

	input := map[string]any{
		"turns": formatTurns(turns, s.historyLimit),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		logging.Warn().Err(err).Msg("[emotion] classifier invoke failed, use fallback")
		return Fallback(turns)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return Fallback(turns)
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		logging.Warn().Err(err).Msg("[emotion] classifier output parse failed, use fallback")
		return Fallback(turns)
	}

	primary, ok := parseEmotionLabel(result.Emotion)
	if !ok || primary == analysis.Neutral {
		return Fallback(turns)
	}
	secondary, ok := parseEmotionLabel(result.SubEmotion)
	if !ok || secondary == primary {
		secondary = analysis.Neutral
	}

	confidence := result.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	return Guidance{
		Primary:    analysis.Decision{Emotion: primary, Score: int(confidence * 10)},
		Secondary:  analysis.Decision{Emotion: secondary},
		Confidence: confidence,
		Reason:     strings.TrimSpace(result.Reason),
		Source:     SourceModel,
	}
}

// Fallback scores the turns with keyword rules.
func Fallback(turns []string) Guidance {
	total := make(analysis.Scores)
	for _, turn := range turns {
		total.Add(analysis.Score(turn))
	}
	primary, secondary := total.Top()

	confidence := float32(0.3)
	if primary.Score > 0 {
		confidence = 0.55
	}

	return Guidance{
		Primary:    primary,
		Secondary:  secondary,
		Confidence: confidence,
		Reason:     "keyword",
		Source:     SourceKeyword,
	}
}

// parseClassifierOutput 解析大模型返回的 JSON。
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func formatTurns(turns []string, limit int) string {
	if limit < 1 {
		limit = 1
	}
	start := max(len(turns)-limit, 0)

	var builder strings.Builder
	for _, turn := range turns[start:] {
		turn = strings.TrimSpace(turn)
		if turn == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("- ")
		builder.WriteString(turn)
	}
	if builder.Len() == 0 {
		return "(없음)"
	}
	return builder.String()
}

func parseEmotionLabel(raw string) (analysis.Label, bool) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" || normalized == "없음" || normalized == "세부감정 없음" {
		return analysis.Neutral, true
	}
	for _, label := range analysis.Labels() {
		if string(label) == normalized {
			return label, true
		}
	}
	return "", false
}

type classifierPayload struct {
	Emotion    string  `json:"emotion"`
	SubEmotion string  `json:"sub_emotion"`
	Confidence float32 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const emotionSystemPrompt = "너는 대화 속 감정을 분류하는 분석가야. 사용자의 발화를 읽고 대표 감정과 세부 감정을 골라.\n감정은 반드시 분노/불안/슬픔/외로움/심심/탐구/행복 중 하나여야 해. 세부 감정이 없으면 빈 문자열로 둬.\n출력은 JSON 객체 하나만: emotion, sub_emotion, confidence (0~1), reason (짧은 한국어 설명). 다른 텍스트는 쓰지 마."

const emotionUserPrompt = "사용자 발화:\n{turns}\n\nJSON으로 답해줘."

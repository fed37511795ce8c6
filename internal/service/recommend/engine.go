// Package recommend is the reference classification backend: it gathers a few turns of
// emotional input, picks a representative emotion and recommends movies for it.
package recommend

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	analysis "github.com/moodcine/backend/internal/analysis/emotion"
	"github.com/moodcine/backend/internal/config"
	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/metrics"
	"github.com/moodcine/backend/internal/model/chat"
	"github.com/moodcine/backend/internal/model/recommend"
	"github.com/moodcine/backend/internal/service/ai"
	emotionservice "github.com/moodcine/backend/internal/service/emotion"
)

const (
	// MoviesPerRecommendation caps the movies returned on finalization.
	MoviesPerRecommendation = 3
	topLimit                = 10
	summaryQuoteLimit       = 40
	finalReply              = "이야기 들려줘서 고마워! 지금 기분에 어울리는 영화를 골라봤어 🎞️"
)

// DefaultEmotion is used when MaxTurns is reached without any evidence.
const DefaultEmotion = analysis.Boredom

// Analyzer judges the emotion of the collected turns.
type Analyzer interface {
	Analyze(ctx context.Context, turns []string) emotionservice.Guidance
}

// Replier produces free-chat answers after the recommendation.
type Replier interface {
	Reply(ctx context.Context, sessionID, emotion string, history []ai.Turn, query string) (string, error)
}

type state struct {
	turns     []string
	history   []ai.Turn
	emotion   string
	finalized bool
	lastSeen  time.Time
}

// Engine keeps per-session progress and the aggregate statistics.
type Engine struct {
	cfg      config.BackendConfig
	analyzer Analyzer
	replier  Replier
	catalog  recommend.Catalog
	prompts  *ai.PromptManager

	mu            sync.Mutex
	sessions      map[string]*state
	emotionCounts map[string]int
	movieCounts   map[string]int
	rotation      map[string]int
}

// NewEngine wires the engine. replier may be nil, in which case chat mode answers
// from templates.
func NewEngine(cfg config.BackendConfig, analyzer Analyzer, replier Replier, catalog recommend.Catalog) *Engine {
	if cfg.MinTurns <= 0 {
		cfg.MinTurns = 1
	}
	if cfg.MaxTurns < cfg.MinTurns {
		cfg.MaxTurns = cfg.MinTurns
	}
	return &Engine{
		cfg:           cfg,
		analyzer:      analyzer,
		replier:       replier,
		catalog:       catalog,
		prompts:       ai.NewPromptManager(),
		sessions:      make(map[string]*state),
		emotionCounts: make(map[string]int),
		movieCounts:   make(map[string]int),
		rotation:      make(map[string]int),
	}
}

// Handle answers one classifier request.
func (e *Engine) Handle(ctx context.Context, req chat.ClassifyRequest) (chat.ClassifyResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return chat.ClassifyResponse{}, fmt.Errorf("empty text")
	}
	if req.IsChat() {
		return e.chat(ctx, req.SessionID, text), nil
	}
	return e.collect(ctx, req.SessionID, text), nil
}

func (e *Engine) collect(ctx context.Context, sessionID, text string) chat.ClassifyResponse {
	e.mu.Lock()
	st := e.session(sessionID)
	if st.finalized {
		// A reloaded widget starts over with the same identifier.
		*st = state{lastSeen: st.lastSeen}
	}
	st.turns = append(st.turns, text)
	st.history = append(st.history, ai.Turn{Speaker: chat.SpeakerUser, Text: text})
	turns := slices.Clone(st.turns)
	e.mu.Unlock()

	guidance := e.analyzer.Analyze(ctx, turns)
	primary := guidance.Primary.Emotion

	ready := len(turns) >= e.cfg.MinTurns && primary != analysis.Neutral
	if !ready && len(turns) < e.cfg.MaxTurns {
		reply := followUp(primary, len(turns))
		e.remember(sessionID, reply)
		return chat.ClassifyResponse{Reply: reply}
	}

	if primary == analysis.Neutral {
		primary = DefaultEmotion
	}
	sub := chat.NoSubEmotion
	if s := guidance.Secondary.Emotion; s != analysis.Neutral && s != primary {
		sub = string(s)
	}

	emotion := string(primary)
	movies := e.pick(emotion)

	e.mu.Lock()
	st = e.session(sessionID)
	st.finalized = true
	st.emotion = emotion
	st.history = append(st.history, ai.Turn{Speaker: chat.SpeakerBot, Text: finalReply})
	e.emotionCounts[emotion]++
	for _, m := range movies {
		e.movieCounts[m.Title]++
	}
	e.mu.Unlock()

	metrics.ClassifiedEmotions.WithLabelValues(emotion).Inc()
	logging.Info().Str("session", sessionID).Str("emotion", emotion).Str("sub_emotion", sub).
		Str("source", string(guidance.Source)).Int("turns", len(turns)).Msg("[recommend] session finalized")

	return chat.ClassifyResponse{
		Reply:      finalReply,
		Final:      true,
		Summary:    summarize(turns, emotion, guidance),
		Emotion:    emotion,
		SubEmotion: sub,
		Movies:     movies,
	}
}

func (e *Engine) chat(ctx context.Context, sessionID, text string) chat.ClassifyResponse {
	e.mu.Lock()
	st := e.session(sessionID)
	st.history = append(st.history, ai.Turn{Speaker: chat.SpeakerUser, Text: text})
	emotion := st.emotion
	history := slices.Clone(st.history[:len(st.history)-1])
	e.mu.Unlock()

	reply := e.prompts.FallbackReply(emotion)
	if e.replier != nil {
		generated, err := e.replier.Reply(ctx, sessionID, emotion, history, text)
		if err != nil {
			logging.Warn().Err(err).Str("session", sessionID).Msg("[recommend] chat reply failed, use template")
		} else {
			reply = generated
		}
	}

	e.remember(sessionID, reply)
	return chat.ClassifyResponse{Reply: reply}
}

// pick rotates through the catalog so repeated emotions do not always get the same titles.
func (e *Engine) pick(emotion string) []chat.Movie {
	candidates := e.catalog.ForEmotion(emotion)
	if len(candidates) == 0 {
		return nil
	}

	e.mu.Lock()
	start := e.rotation[emotion]
	e.rotation[emotion] = (start + 1) % len(candidates)
	e.mu.Unlock()

	n := min(MoviesPerRecommendation, len(candidates))
	picked := make([]chat.Movie, 0, n)
	for i := range n {
		picked = append(picked, candidates[(start+i)%len(candidates)])
	}
	return picked
}

func (e *Engine) remember(sessionID, reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.session(sessionID)
	st.history = append(st.history, ai.Turn{Speaker: chat.SpeakerBot, Text: reply})
}

// session must be called with mu held.
func (e *Engine) session(id string) *state {
	st, ok := e.sessions[id]
	if !ok {
		st = &state{}
		e.sessions[id] = st
	}
	st.lastSeen = time.Now()
	return st
}

// Stats returns finalized sessions per emotion, most frequent first.
func (e *Engine) Stats() []recommend.EmotionStat {
	e.mu.Lock()
	stats := make([]recommend.EmotionStat, 0, len(e.emotionCounts))
	for emotion, count := range e.emotionCounts {
		stats = append(stats, recommend.EmotionStat{Emotion: emotion, Count: count})
	}
	e.mu.Unlock()

	slices.SortFunc(stats, func(a, b recommend.EmotionStat) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Emotion, b.Emotion))
	})
	return stats
}

// Top10 returns the ten most recommended titles.
func (e *Engine) Top10() []recommend.MovieStat {
	e.mu.Lock()
	top := make([]recommend.MovieStat, 0, len(e.movieCounts))
	for title, count := range e.movieCounts {
		top = append(top, recommend.MovieStat{Movie: title, Count: count})
	}
	e.mu.Unlock()

	slices.SortFunc(top, func(a, b recommend.MovieStat) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Movie, b.Movie))
	})
	if len(top) > topLimit {
		top = top[:topLimit]
	}
	return top
}

// Sweep forgets sessions idle for longer than maxIdle.
func (e *Engine) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, st := range e.sessions {
		if st.lastSeen.Before(cutoff) {
			delete(e.sessions, id)
			removed++
		}
	}
	return removed
}

func followUp(current analysis.Label, turn int) string {
	switch current {
	case analysis.Anger:
		return "많이 화가 났구나. 어떤 일이 있었는지 조금 더 말해줄래?"
	case analysis.Anxiety:
		return "걱정되는 일이 있구나. 무엇이 제일 마음에 걸려?"
	case analysis.Sadness:
		return "마음이 많이 힘들었겠다. 요즘 어떤 일이 있었어?"
	case analysis.Loneliness:
		return "혼자라고 느껴질 때가 있구나. 그럴 때 주로 뭐 하면서 보내?"
	case analysis.Boredom:
		return "심심할 땐 영화가 최고지! 요즘 끌리는 분위기가 있어?"
	case analysis.Curiosity:
		return "궁금한 게 많구나! 요즘 어떤 주제에 빠져 있어?"
	case analysis.Happiness:
		return "기분 좋은 일이 있었나 봐! 무슨 일인지 들려줄래?"
	}
	if turn <= 1 {
		return "그렇구나. 오늘 하루는 어땠는지 조금 더 이야기해줄래?"
	}
	return "지금 마음을 한 단어로 표현한다면 뭐라고 할 수 있을까?"
}

func summarize(turns []string, emotion string, guidance emotionservice.Guidance) string {
	quote := turns[len(turns)-1]
	if r := []rune(quote); len(r) > summaryQuoteLimit {
		quote = string(r[:summaryQuoteLimit]) + "…"
	}
	summary := fmt.Sprintf("%d번의 대화에서 '%s' 감정이 가장 크게 느껴졌어요. 마지막으로 \"%s\"라고 말해줬어요.", len(turns), emotion, quote)
	if guidance.Source == emotionservice.SourceModel && guidance.Reason != "" {
		summary += " " + guidance.Reason
	}
	return summary
}

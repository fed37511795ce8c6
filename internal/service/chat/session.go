package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/metrics"
	"github.com/moodcine/backend/internal/model/chat"
)

const (
	// Greeting opens every conversation.
	Greeting = "너의 기분에 맞는 영화를 추천해줄게! 😊\n오늘 기분이 어때?"
	// ClosingPrompt follows the recommendation summary.
	ClosingPrompt = "내가 추천해준 영화가 마음에 들어? 🎬"
	// ErrorNotice replaces the reply whenever the classifier request fails.
	ErrorNotice = "⚠️ 서버 연결 오류"
)

const (
	defaultRequestTimeout    = 30 * time.Second
	defaultPosterConcurrency = 4
)

// Outcome classifies what a submission did.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeBusy      Outcome = "busy"
	OutcomeReplied   Outcome = "replied"
	OutcomeFinalized Outcome = "finalized"
	OutcomeFailed    Outcome = "failed"
)

// Result reports a submission outcome and the session state after it.
type Result struct {
	Outcome  Outcome       `json:"outcome"`
	Snapshot chat.Snapshot `json:"session"`
	// Err is the classifier failure behind OutcomeFailed. It is never rendered.
	Err error `json:"-"`
}

// Options tunes a session. Zero values fall back to defaults.
type Options struct {
	RequestTimeout    time.Duration
	PosterConcurrency int
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.PosterConcurrency <= 0 {
		o.PosterConcurrency = defaultPosterConcurrency
	}
	return o
}

// Session is one conversation: it collects emotional input until the classifier
// finalizes a recommendation, then switches to free chat for good.
//
// At most one submission runs at a time; overlapping calls get OutcomeBusy.
type Session struct {
	id         string
	createdAt  time.Time
	classifier Classifier
	posters    PosterLookup
	opts       Options

	inFlight atomic.Bool

	mu         sync.Mutex
	phase      chat.Phase
	turnCount  int
	lastActive time.Time
}

// NewSession starts a session in the collecting phase with a fresh identifier.
// posters may be nil, in which case no artwork is displayed.
func NewSession(classifier Classifier, posters PosterLookup, opts Options) *Session {
	now := time.Now().UTC()
	return &Session{
		id:         uuid.NewString(),
		createdAt:  now,
		classifier: classifier,
		posters:    posters,
		opts:       opts.withDefaults(),
		phase:      chat.PhaseCollectingEmotion,
		lastActive: now,
	}
}

// ID returns the session identifier. It never changes.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current phase and turn count.
func (s *Session) Snapshot() chat.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.Snapshot{
		ID:        s.id,
		Phase:     s.phase,
		TurnCount: s.turnCount,
		CreatedAt: s.createdAt,
	}
}

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool {
	return s.inFlight.Load()
}

// LastActive is the time of the last accepted submission, or creation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Greet renders the opening line.
func (s *Session) Greet(sink Sink) {
	sink.AppendMessage(s.message(chat.SpeakerBot, Greeting))
}

// Submit sends one user turn to the classifier and renders the outcome to sink.
//
// Blank input is ignored. Classifier failures are rendered as ErrorNotice and leave
// the phase and turn count as they were, so the caller may simply retry.
func (s *Session) Submit(ctx context.Context, text string, sink Sink) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.finish(OutcomeIgnored, s.Snapshot().Phase, nil)
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return s.finish(OutcomeBusy, s.Snapshot().Phase, nil)
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	phase := s.phase
	s.lastActive = time.Now().UTC()
	s.mu.Unlock()

	sink.AppendMessage(s.message(chat.SpeakerUser, text))

	req := chat.ClassifyRequest{SessionID: s.id, Text: text}
	if phase == chat.PhasePostRecommendation {
		req.Mode = chat.ModeChat
	}

	resp, err := s.classify(ctx, req, sink)
	if err != nil {
		logging.Warn().Err(err).Str("session", s.id).Str("phase", string(phase)).
			Msg("[chat] classifier request failed")
		sink.AppendMessage(s.message(chat.SpeakerBot, ErrorNotice))
		return s.finish(OutcomeFailed, phase, err)
	}

	sink.AppendMessage(s.message(chat.SpeakerBot, resp.Reply))

	if phase == chat.PhasePostRecommendation {
		return s.finish(OutcomeReplied, phase, nil)
	}

	s.mu.Lock()
	s.turnCount++
	s.mu.Unlock()

	if !resp.Final {
		return s.finish(OutcomeReplied, phase, nil)
	}

	s.finalize(ctx, resp, sink)
	return s.finish(OutcomeFinalized, phase, nil)
}

// classify brackets the request with the working indicator, which is hidden
// exactly once whatever the result.
func (s *Session) classify(ctx context.Context, req chat.ClassifyRequest, sink Sink) (chat.ClassifyResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	sink.ShowIndicator()
	resp, err := s.classifier.Classify(reqCtx, req)
	sink.HideIndicator()

	return resp, err
}

func (s *Session) finalize(ctx context.Context, resp chat.ClassifyResponse, sink Sink) {
	sink.AppendMessage(s.message(chat.SpeakerBot, ComposeSummary(resp)))

	if len(resp.Movies) > 0 {
		posterCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
		posters := s.resolvePosters(posterCtx, resp.Titles())
		cancel()
		if len(posters) > 0 {
			sink.ShowPosters(posters)
		}
	}

	s.mu.Lock()
	s.phase = chat.PhasePostRecommendation
	s.turnCount = 0
	s.mu.Unlock()

	logging.Info().Str("session", s.id).Str("emotion", resp.Emotion).Int("movies", len(resp.Movies)).
		Msg("[chat] recommendation delivered")

	sink.AppendMessage(s.message(chat.SpeakerBot, ClosingPrompt))
}

func (s *Session) finish(outcome Outcome, phase chat.Phase, err error) Result {
	metrics.ChatSubmissions.WithLabelValues(string(phase), string(outcome)).Inc()
	return Result{Outcome: outcome, Snapshot: s.Snapshot(), Err: err}
}

func (s *Session) message(speaker chat.Speaker, text string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

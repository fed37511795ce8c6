package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/metrics"
	"github.com/moodcine/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	session    *Session
	transcript []chat.Message
	// pending counts Submit calls holding the entry; guarded by Service.mu.
	pending int
}

// Service owns the live sessions of this process and their transcripts.
type Service struct {
	classifier Classifier
	posters    PosterLookup
	opts       Options

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewService bootstraps the in-memory session registry.
func NewService(classifier Classifier, posters PosterLookup, opts Options) *Service {
	return &Service{
		classifier: classifier,
		posters:    posters,
		opts:       opts.withDefaults(),
		sessions:   make(map[string]*entry),
	}
}

// CreateSession starts a session and records the greeting in its transcript.
func (s *Service) CreateSession(_ context.Context) (*Session, error) {
	session := NewSession(s.classifier, s.posters, s.opts)
	e := &entry{session: session, transcript: make([]chat.Message, 0, 16)}

	s.mu.Lock()
	s.sessions[session.ID()] = e
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ChatActiveSessions.Set(float64(count))
	session.Greet(teeSink{Sink: discardSink{}, onMessage: s.appendTranscript(session.ID())})

	logging.Info().Str("session", session.ID()).Msg("[chat] session created")
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.session, nil
}

// Submit runs one turn on the session, rendering to sink and the transcript.
// The session cannot be swept while the turn runs.
func (s *Service) Submit(ctx context.Context, sessionID, text string, sink Sink) (Result, error) {
	e, err := s.acquire(sessionID)
	if err != nil {
		return Result{}, err
	}
	defer s.release(e)

	return e.session.Submit(ctx, text, teeSink{Sink: sink, onMessage: s.appendTranscript(sessionID)}), nil
}

func (s *Service) acquire(sessionID string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.pending++
	return e, nil
}

func (s *Service) release(e *entry) {
	s.mu.Lock()
	e.pending--
	s.mu.Unlock()
}

// LoadTranscript returns the rendered messages of the session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(e.transcript))
	copy(copied, e.transcript)
	return copied, nil
}

// DeleteSession forgets a session, the server-side equivalent of a page reload.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ChatActiveSessions.Set(float64(count))
	return nil
}

// Sweep drops idle sessions that have no submission pending and returns how many went.
func (s *Service) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)

	s.mu.Lock()
	removed := 0
	for id, e := range s.sessions {
		if e.pending > 0 || e.session.Busy() || e.session.LastActive().After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ChatActiveSessions.Set(float64(count))
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(maxIdle); n > 0 {
				logging.Info().Int("removed", n).Msg("[chat] swept idle sessions")
			}
		}
	}
}

func (s *Service) appendTranscript(sessionID string) func(chat.Message) {
	return func(msg chat.Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.sessions[sessionID]; ok {
			e.transcript = append(e.transcript, msg)
		}
	}
}

type discardSink struct{}

func (discardSink) AppendMessage(chat.Message) {}
func (discardSink) ShowIndicator() {}
func (discardSink) HideIndicator() {}
func (discardSink) ShowPosters([]chat.Poster) {}

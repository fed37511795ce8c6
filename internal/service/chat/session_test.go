package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/moodcine/backend/internal/model/chat"
	chatservice "github.com/moodcine/backend/internal/service/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type step struct {
	resp chat.ClassifyResponse
	err  error
}

type fakeClassifier struct {
	mu       sync.Mutex
	steps    []step
	requests []chat.ClassifyRequest
}

func (f *fakeClassifier) Classify(_ context.Context, req chat.ClassifyRequest) (chat.ClassifyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.steps) == 0 {
		return chat.ClassifyResponse{}, errors.New("no scripted response")
	}
	next := f.steps[0]
	f.steps = f.steps[1:]
	return next.resp, next.err
}

func (f *fakeClassifier) Requests() []chat.ClassifyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.ClassifyRequest(nil), f.requests...)
}

type fakePosters struct {
	urls  map[string]string
	fail  map[string]bool
	delay map[string]time.Duration
}

func (f fakePosters) LookupPoster(ctx context.Context, title string) (chat.Poster, bool, error) {
	if d := f.delay[title]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return chat.Poster{}, false, ctx.Err()
		}
	}
	if f.fail[title] {
		return chat.Poster{}, false, errors.New("lookup failed")
	}
	url, ok := f.urls[title]
	if !ok {
		return chat.Poster{}, false, nil
	}
	return chat.Poster{Title: title, URL: url}, true, nil
}

// trace flattens recorded events into comparable strings.
func trace(events []chat.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		switch e.Type {
		case chat.EventMessage:
			out = append(out, string(e.Message.Speaker)+":"+e.Message.Text)
		case chat.EventIndicatorShow:
			out = append(out, "indicator:show")
		case chat.EventIndicatorHide:
			out = append(out, "indicator:hide")
		case chat.EventPosters:
			titles := make([]string, 0, len(e.Posters))
			for _, p := range e.Posters {
				titles = append(titles, p.Title)
			}
			out = append(out, "posters:"+strings.Join(titles, ","))
		}
	}
	return out
}

func finalResponse() chat.ClassifyResponse {
	return chat.ClassifyResponse{
		Reply:      "그랬구나, 많이 외로웠겠다.",
		Final:      true,
		Summary:    "요즘 혼자라고 느끼고 있어요.",
		Emotion:    "외로움",
		SubEmotion: chat.NoSubEmotion,
		Movies:     []chat.Movie{{Title: "영화A"}, {Title: "영화B"}},
	}
}

func TestScenarioCollectingTurnWithoutFinal(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{{resp: chat.ClassifyResponse{Reply: "더 말해줄래?"}}}}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{})
	rec := chatservice.NewRecorder()

	result := session.Submit(context.Background(), "기분이 안좋아", rec)

	require.Equal(t, chatservice.OutcomeReplied, result.Outcome)
	want := []string{
		"user:기분이 안좋아",
		"indicator:show",
		"indicator:hide",
		"bot:더 말해줄래?",
	}
	if diff := cmp.Diff(want, trace(rec.Events())); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
	assert.Equal(t, chat.PhaseCollectingEmotion, result.Snapshot.Phase)
	assert.Equal(t, 1, result.Snapshot.TurnCount)

	reqs := classifier.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, chat.ClassifyRequest{SessionID: session.ID(), Text: "기분이 안좋아"}, reqs[0])
}

func TestScenarioFinalizingTurn(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{
		{resp: chat.ClassifyResponse{Reply: "더 말해줄래?"}},
		{resp: finalResponse()},
	}}
	posters := fakePosters{urls: map[string]string{"영화A": "https://img/a.jpg", "영화B": "https://img/b.jpg"}}
	session := chatservice.NewSession(classifier, posters, chatservice.Options{})
	ctx := context.Background()

	session.Submit(ctx, "기분이 안좋아", chatservice.NewRecorder())
	rec := chatservice.NewRecorder()
	result := session.Submit(ctx, "그냥 외로워", rec)

	require.Equal(t, chatservice.OutcomeFinalized, result.Outcome)
	assert.Equal(t, chat.PhasePostRecommendation, result.Snapshot.Phase)
	assert.Equal(t, 0, result.Snapshot.TurnCount)

	summary := "🧠 요약: 요즘 혼자라고 느끼고 있어요.\n" +
		"🎭 대표 감정: 외로움\n" +
		"🎥 추천 영화 목록:\n" +
		"- 영화A\n" +
		"- 영화B\n"
	want := []string{
		"user:그냥 외로워",
		"indicator:show",
		"indicator:hide",
		"bot:그랬구나, 많이 외로웠겠다.",
		"bot:" + summary,
		"posters:영화A,영화B",
		"bot:" + chatservice.ClosingPrompt,
	}
	if diff := cmp.Diff(want, trace(rec.Events())); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestPostRecommendationRequestsUseChatMode(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{
		{resp: finalResponse()},
		{resp: chat.ClassifyResponse{Reply: "다행이다!"}},
		{resp: chat.ClassifyResponse{Reply: "또 이야기하자", Final: true}},
	}}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{})
	ctx := context.Background()

	session.Submit(ctx, "외로워", chatservice.NewRecorder())
	first := session.Submit(ctx, "좋아", chatservice.NewRecorder())
	rec := chatservice.NewRecorder()
	second := session.Submit(ctx, "고마워", rec)

	assert.Equal(t, chatservice.OutcomeReplied, first.Outcome)
	// final in chat mode is not a transition trigger
	assert.Equal(t, chatservice.OutcomeReplied, second.Outcome)
	assert.Equal(t, chat.PhasePostRecommendation, second.Snapshot.Phase)
	assert.Equal(t, 0, second.Snapshot.TurnCount)
	assert.Equal(t, []string{"user:고마워", "indicator:show", "indicator:hide", "bot:또 이야기하자"}, trace(rec.Events()))

	reqs := classifier.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[0].Mode)
	assert.Equal(t, chat.ModeChat, reqs[1].Mode)
	assert.Equal(t, chat.ModeChat, reqs[2].Mode)
	for _, r := range reqs {
		assert.Equal(t, session.ID(), r.SessionID)
	}
}

func TestFailureLeavesStateUnchanged(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{
		{resp: chat.ClassifyResponse{Reply: "더 말해줄래?"}},
		{err: errors.New("connection refused")},
		{resp: chat.ClassifyResponse{Reply: "응, 계속 말해줘"}},
	}}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{})
	ctx := context.Background()

	session.Submit(ctx, "우울해", chatservice.NewRecorder())

	rec := chatservice.NewRecorder()
	failed := session.Submit(ctx, "너무 힘들어", rec)
	require.Equal(t, chatservice.OutcomeFailed, failed.Outcome)
	require.Error(t, failed.Err)
	assert.Equal(t, []string{
		"user:너무 힘들어",
		"indicator:show",
		"indicator:hide",
		"bot:" + chatservice.ErrorNotice,
	}, trace(rec.Events()))
	assert.Equal(t, chat.PhaseCollectingEmotion, failed.Snapshot.Phase)
	assert.Equal(t, 1, failed.Snapshot.TurnCount)

	retry := session.Submit(ctx, "너무 힘들어", chatservice.NewRecorder())
	assert.Equal(t, chatservice.OutcomeReplied, retry.Outcome)
	assert.Equal(t, 2, retry.Snapshot.TurnCount)

	reqs := classifier.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[2].Mode, "retry keeps the collecting request shape")
}

func TestBlankInputIsIgnored(t *testing.T) {
	classifier := &fakeClassifier{}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{})

	for _, text := range []string{"", "   ", "\n\t "} {
		rec := chatservice.NewRecorder()
		result := session.Submit(context.Background(), text, rec)
		assert.Equal(t, chatservice.OutcomeIgnored, result.Outcome)
		assert.Empty(t, rec.Events())
	}
	assert.Empty(t, classifier.Requests())
	assert.Equal(t, 0, session.Snapshot().TurnCount)
}

func TestInputIsTrimmedBeforeSending(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{{resp: chat.ClassifyResponse{Reply: "응"}}}}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{})

	session.Submit(context.Background(), "  심심해 \n", chatservice.NewRecorder())

	reqs := classifier.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "심심해", reqs[0].Text)
}

func TestPosterMissesAreSkippedInOrder(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{{resp: chat.ClassifyResponse{
		Reply:   "추천해줄게",
		Final:   true,
		Emotion: "행복",
		Movies:  []chat.Movie{{Title: "영화A"}, {Title: "영화B"}, {Title: "영화C"}, {Title: "영화D"}},
	}}}}
	posters := fakePosters{
		urls: map[string]string{"영화A": "a.jpg", "영화C": "c.jpg", "영화D": "d.jpg"},
		fail: map[string]bool{"영화D": true},
		// the first title resolves last; display order must not follow completion order
		delay: map[string]time.Duration{"영화A": 30 * time.Millisecond},
	}
	session := chatservice.NewSession(classifier, posters, chatservice.Options{PosterConcurrency: 4})
	rec := chatservice.NewRecorder()

	result := session.Submit(context.Background(), "좋아", rec)
	require.Equal(t, chatservice.OutcomeFinalized, result.Outcome)

	var shown [][]chat.Poster
	for _, e := range rec.Events() {
		if e.Type == chat.EventPosters {
			shown = append(shown, e.Posters)
		}
	}
	require.Len(t, shown, 1)
	assert.Equal(t, []chat.Poster{{Title: "영화A", URL: "a.jpg"}, {Title: "영화C", URL: "c.jpg"}}, shown[0])
}

func TestNoPosterGroupWhenNothingResolves(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{{resp: finalResponse()}}}
	session := chatservice.NewSession(classifier, fakePosters{}, chatservice.Options{})
	rec := chatservice.NewRecorder()

	session.Submit(context.Background(), "외로워", rec)

	for _, e := range rec.Events() {
		assert.NotEqual(t, chat.EventPosters, e.Type)
	}
	msgs := rec.Messages()
	assert.Equal(t, chatservice.ClosingPrompt, msgs[len(msgs)-1].Text)
}

type blockingClassifier struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingClassifier) Classify(ctx context.Context, _ chat.ClassifyRequest) (chat.ClassifyResponse, error) {
	close(b.entered)
	select {
	case <-b.release:
		return chat.ClassifyResponse{Reply: "응"}, nil
	case <-ctx.Done():
		return chat.ClassifyResponse{}, ctx.Err()
	}
}

func TestConcurrentSubmissionIsRejected(t *testing.T) {
	classifier := &blockingClassifier{entered: make(chan struct{}), release: make(chan struct{})}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{})
	ctx := context.Background()

	done := make(chan chatservice.Result, 1)
	go func() {
		done <- session.Submit(ctx, "첫 번째", chatservice.NewRecorder())
	}()
	<-classifier.entered

	rec := chatservice.NewRecorder()
	busy := session.Submit(ctx, "두 번째", rec)
	assert.Equal(t, chatservice.OutcomeBusy, busy.Outcome)
	assert.Empty(t, rec.Events())
	assert.True(t, session.Busy())

	close(classifier.release)
	first := <-done
	assert.Equal(t, chatservice.OutcomeReplied, first.Outcome)
	assert.Equal(t, 1, first.Snapshot.TurnCount)
	assert.False(t, session.Busy())
}

func TestRequestTimeoutRendersNotice(t *testing.T) {
	classifier := &blockingClassifier{entered: make(chan struct{}), release: make(chan struct{})}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{RequestTimeout: 20 * time.Millisecond})
	rec := chatservice.NewRecorder()

	result := session.Submit(context.Background(), "답장 언제와", rec)

	require.Equal(t, chatservice.OutcomeFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	msgs := rec.Messages()
	assert.Equal(t, chatservice.ErrorNotice, msgs[len(msgs)-1].Text)
	assert.Equal(t, 0, result.Snapshot.TurnCount)
}

func TestIndicatorPairedForEveryAcceptedSubmission(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{
		{resp: chat.ClassifyResponse{Reply: "하나"}},
		{err: errors.New("boom")},
		{resp: finalResponse()},
		{resp: chat.ClassifyResponse{Reply: "넷"}},
	}}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{})

	for _, text := range []string{"a", "b", "c", "d"} {
		rec := chatservice.NewRecorder()
		session.Submit(context.Background(), text, rec)

		shows, hides, replies := 0, 0, 0
		hidden := false
		for _, e := range rec.Events() {
			switch e.Type {
			case chat.EventIndicatorShow:
				shows++
			case chat.EventIndicatorHide:
				hides++
				hidden = true
			case chat.EventMessage:
				if e.Message.Speaker == chat.SpeakerBot {
					require.True(t, hidden, "bot message rendered before indicator removal")
					replies++
				}
			}
		}
		assert.Equal(t, 1, shows)
		assert.Equal(t, 1, hides)
		assert.GreaterOrEqual(t, replies, 1)
	}
	assert.Len(t, classifier.Requests(), 4)
}

func TestSessionIDIsStable(t *testing.T) {
	classifier := &fakeClassifier{steps: []step{{resp: finalResponse()}}}
	session := chatservice.NewSession(classifier, nil, chatservice.Options{})
	id := session.ID()
	require.NotEmpty(t, id)

	result := session.Submit(context.Background(), "외로워", chatservice.NewRecorder())
	assert.Equal(t, id, result.Snapshot.ID)
	assert.Equal(t, id, session.ID())
	assert.NotEqual(t, id, chatservice.NewSession(classifier, nil, chatservice.Options{}).ID())
}

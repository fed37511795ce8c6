package classify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodcine/backend/internal/config"
	"github.com/moodcine/backend/internal/handler/classify"
	"github.com/moodcine/backend/internal/model/chat"
	modelrecommend "github.com/moodcine/backend/internal/model/recommend"
	"github.com/moodcine/backend/internal/service/classifier"
	emotionservice "github.com/moodcine/backend/internal/service/emotion"
	"github.com/moodcine/backend/internal/service/recommend"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	analyzer, err := emotionservice.NewService(context.Background(), nil, emotionservice.Config{})
	require.NoError(t, err)

	engine := recommend.NewEngine(config.BackendConfig{MinTurns: 2, MaxTurns: 4}, analyzer, nil,
		modelrecommend.NewMemoryCatalog(modelrecommend.Seed()))

	r := chi.NewRouter()
	classify.New(engine).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestContractRoundTripThroughClient(t *testing.T) {
	srv := newServer(t)
	client := classifier.NewClient(config.ClassifierConfig{URL: srv.URL + "/chat", Timeout: time.Second}, nil)
	ctx := context.Background()

	first, err := client.Classify(ctx, chat.ClassifyRequest{SessionID: "s1", Text: "요즘 너무 우울해"})
	require.NoError(t, err)
	assert.False(t, first.Final)
	assert.NotEmpty(t, first.Reply)

	final, err := client.Classify(ctx, chat.ClassifyRequest{SessionID: "s1", Text: "자꾸 눈물이 나"})
	require.NoError(t, err)
	require.True(t, final.Final)
	assert.Equal(t, "슬픔", final.Emotion)
	assert.Equal(t, chat.NoSubEmotion, final.SubEmotion)
	assert.Len(t, final.Movies, 3)

	after, err := client.Classify(ctx, chat.ClassifyRequest{SessionID: "s1", Text: "고마워", Mode: chat.ModeChat})
	require.NoError(t, err)
	assert.False(t, after.Final)
	assert.NotEmpty(t, after.Reply)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "슬픔", stats[0].Emotion)
	assert.Equal(t, 1, stats[0].Count)

	top, err := client.Top10(ctx)
	require.NoError(t, err)
	assert.Len(t, top, 3)
}

func TestChatValidation(t *testing.T) {
	srv := newServer(t)

	cases := map[string]string{
		"missing session": `{"text":"안녕"}`,
		"missing text":    `{"sessionId":"s"}`,
		"unknown mode":    `{"sessionId":"s","text":"안녕","mode":"voice"}`,
		"malformed":       `{"sessionId":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

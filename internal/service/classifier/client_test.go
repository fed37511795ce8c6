package classifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodcine/backend/internal/config"
	"github.com/moodcine/backend/internal/model/chat"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ClassifierConfig{URL: srv.URL + "/chat", Timeout: time.Second}, nil)
}

func TestClassifySendsContractBody(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte(`{"reply":"더 말해줄래?"}`))
	})

	resp, err := client.Classify(context.Background(), chat.ClassifyRequest{SessionID: "s1", Text: "기분이 안좋아"})
	require.NoError(t, err)
	assert.Equal(t, "더 말해줄래?", resp.Reply)
	assert.False(t, resp.Final)
	assert.Equal(t, map[string]any{"sessionId": "s1", "text": "기분이 안좋아"}, got, "collecting requests carry no mode")

	_, err = client.Classify(context.Background(), chat.ClassifyRequest{SessionID: "s1", Text: "좋아", Mode: chat.ModeChat})
	require.NoError(t, err)
	assert.Equal(t, "chat", got["mode"])
}

func TestClassifyDecodesFinalization(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"reply": "추천해줄게",
			"final": true,
			"summary": "요약",
			"emotion": "외로움",
			"sub_emotion": "세부감정 없음",
			"movies": [{"title": "영화A", "year": 2020}, {"title": "영화B"}]
		}`))
	})

	resp, err := client.Classify(context.Background(), chat.ClassifyRequest{SessionID: "s", Text: "t"})
	require.NoError(t, err)
	assert.True(t, resp.Final)
	assert.Equal(t, "외로움", resp.Emotion)
	assert.False(t, resp.HasSubEmotion())
	assert.Equal(t, []string{"영화A", "영화B"}, resp.Titles())
}

func TestClassifyFailureKinds(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		kind    FailureKind
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model crashed", http.StatusInternalServerError)
			},
			kind: FailureStatus,
		},
		{
			name: "malformed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			kind: FailureDecode,
		},
		{
			name: "missing reply",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"final": false}`))
			},
			kind: FailureDecode,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.handler)
			_, err := client.Classify(context.Background(), chat.ClassifyRequest{SessionID: "s", Text: "t"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNetworkFailure)

			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, tc.kind, reqErr.Kind)
		})
	}
}

func TestClassifyTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(config.ClassifierConfig{URL: url + "/chat", Timeout: time.Second}, nil)
	_, err := client.Classify(context.Background(), chat.ClassifyRequest{SessionID: "s", Text: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFailure)
}

func TestClassifyBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for range 10 {
		_, err := client.Classify(context.Background(), chat.ClassifyRequest{SessionID: "s", Text: "t"})
		require.ErrorIs(t, err, ErrNetworkFailure)
	}

	assert.Less(t, calls.Load(), int32(10), "open breaker should stop reaching the upstream")
	_, err := client.Classify(context.Background(), chat.ClassifyRequest{SessionID: "s", Text: "t"})
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, FailureRejected, reqErr.Kind)
}

func TestStatsAndTop10(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stats":
			_, _ = w.Write([]byte(`[{"rep_emotion":"슬픔","count":4},{"rep_emotion":"행복","count":2}]`))
		case "/top10":
			_, _ = w.Write([]byte(`[{"movie":"어바웃 타임 (2013)","count":3}]`))
		default:
			http.NotFound(w, r)
		}
	})

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "슬픔", stats[0].Emotion)
	assert.Equal(t, 4, stats[0].Count)

	top, err := client.Top10(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "어바웃 타임 (2013)", top[0].Movie)
}

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelchat "github.com/moodcine/backend/internal/model/chat"
	"github.com/moodcine/backend/internal/service/chat"
)

type scriptedClassifier struct {
	calls int
}

func (s *scriptedClassifier) Classify(_ context.Context, _ modelchat.ClassifyRequest) (modelchat.ClassifyResponse, error) {
	s.calls++
	if s.calls == 1 {
		return modelchat.ClassifyResponse{Reply: "조금 더 얘기해 줄래?"}, nil
	}
	return modelchat.ClassifyResponse{
		Final:      true,
		Reply:      "추천해 볼게",
		Summary:    "요약",
		Emotion:    "슬픔",
		SubEmotion: modelchat.NoSubEmotion,
		Movies:     []modelchat.Movie{{Title: "어바웃 타임 (2013)"}},
	}, nil
}

type fixedPosters struct{}

func (fixedPosters) LookupPoster(_ context.Context, title string) (modelchat.Poster, bool, error) {
	return modelchat.Poster{Title: title, URL: "https://img.example/a.jpg"}, true, nil
}

func TestConversePrintsRepliesAndPosters(t *testing.T) {
	classifier := &scriptedClassifier{}
	session := chat.NewSession(classifier, fixedPosters{}, chat.Options{})

	var out bytes.Buffer
	err := converse(context.Background(), session, strings.NewReader("우울해\n\n눈물이 나\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, 2, classifier.calls, "blank lines are not sent")
	text := out.String()
	assert.Contains(t, text, "bot: 조금 더 얘기해 줄래?")
	assert.Contains(t, text, "bot is typing...")
	assert.Contains(t, text, "[poster] 어바웃 타임 (2013) https://img.example/a.jpg")
	assert.Equal(t, modelchat.PhasePostRecommendation, session.Snapshot().Phase)
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "a\n     b", indent("a\nb"))
}

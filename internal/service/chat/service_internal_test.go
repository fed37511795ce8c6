package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodcine/backend/internal/model/chat"
)

type echoClassifier struct{}

func (echoClassifier) Classify(_ context.Context, req chat.ClassifyRequest) (chat.ClassifyResponse, error) {
	return chat.ClassifyResponse{Reply: "응: " + req.Text}, nil
}

func TestSweepKeepsAcquiredSession(t *testing.T) {
	svc := NewService(echoClassifier{}, nil, Options{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Looked up by Submit but not yet running: the in-flight flag is still clear.
	e, err := svc.acquire(session.ID())
	require.NoError(t, err)
	require.False(t, session.Busy())

	assert.Equal(t, 0, svc.Sweep(time.Millisecond))

	result := e.session.Submit(ctx, "안녕", teeSink{Sink: discardSink{}, onMessage: svc.appendTranscript(session.ID())})
	svc.release(e)
	assert.Equal(t, OutcomeReplied, result.Outcome)

	transcript, err := svc.LoadTranscript(ctx, session.ID())
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, "응: 안녕", transcript[2].Text)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, svc.Sweep(time.Millisecond))
}

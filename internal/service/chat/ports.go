package chat

import (
	"context"

	"github.com/moodcine/backend/internal/model/chat"
)

// Classifier is the remote emotion classification/recommendation endpoint.
type Classifier interface {
	Classify(ctx context.Context, req chat.ClassifyRequest) (chat.ClassifyResponse, error)
}

// PosterLookup resolves artwork for a title. A miss is (Poster{}, false, nil).
type PosterLookup interface {
	LookupPoster(ctx context.Context, title string) (chat.Poster, bool, error)
}

// Sink renders what the session produces. Calls arrive in display order.
type Sink interface {
	AppendMessage(msg chat.Message)
	ShowIndicator()
	HideIndicator()
	ShowPosters(posters []chat.Poster)
}

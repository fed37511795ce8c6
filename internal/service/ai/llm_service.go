package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/model/chat"
)

const historyLimit = 10

// Turn is one exchange remembered for the model.
type Turn struct {
	Speaker chat.Speaker
	Text    string
}

// Service encapsulates model-backed post-recommendation chat.
type Service struct {
	prompts *PromptManager
	chain   compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the chat chain around chatModel.
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		prompts: NewPromptManager(),
		chain:   runnable,
	}, nil
}

// Reply generates the answer to query for a session whose mood is emotion.
func (s *Service) Reply(ctx context.Context, sessionID, emotion string, history []Turn, query string) (string, error) {
	input := map[string]any{
		"system":  s.prompts.BuildSystemPrompt(emotion),
		"history": buildHistoryMessages(history),
		"query":   query,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", fmt.Errorf("chat chain returned an empty reply")
	}

	logging.Debug().Str("session", sessionID).Str("emotion", emotion).Int("length", len(content)).
		Msg("[ai] generated reply")
	return content, nil
}

func buildHistoryMessages(turns []Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	start := max(len(turns)-historyLimit, 0)
	history := make([]*schema.Message, 0, len(turns)-start)
	for _, turn := range turns[start:] {
		switch turn.Speaker {
		case chat.SpeakerUser:
			history = append(history, schema.UserMessage(turn.Text))
		case chat.SpeakerBot:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}

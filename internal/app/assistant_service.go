package app

import (
	"context"
	"fmt"
	"strings"

	"fwk-assistant/internal/ai"
	"fwk-assistant/internal/logging"
	"fwk-assistant/internal/model"
	"fwk-assistant/internal/session"
	"fwk-assistant/internal/view"
)

type PromptClient interface {
	GenerateContent(ctx context.Context, apiKey string, prompt ai.PromptRequest) (*ai.Response, error)
	Model() string
}

type AssistantService struct {
	client    PromptClient
	publisher ActivityPublisher
}

type SendPromptInput struct {
	ClientID string
	Prompt   ai.PromptRequest
}

func NewAssistantService(client PromptClient, publisher ActivityPublisher) *AssistantService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &AssistantService{
		client:    client,
		publisher: publisher,
	}
}

// ResolveAPIKey reads the key from the view's key input and saves it for
// later pages. With no key it alerts and returns ErrNoAPIKey.
func (s *AssistantService) ResolveAPIKey(ctx context.Context, store *session.Store, p view.Presenter) (string, error) {
	key, ok := p.APIKeyInput()
	if !ok || strings.TrimSpace(key) == "" {
		p.Alert(MessageMissingAPIKey)
		return "", ErrNoAPIKey
	}
	if err := store.SaveAPIKey(ctx, key); err != nil {
		return "", err
	}
	return key, nil
}

// SendPrompt makes one generation call with the client's key. The loading
// indicator is shown once a key is resolved and is hidden on every return
// after that.
func (s *AssistantService) SendPrompt(ctx context.Context, store *session.Store, p view.Presenter, input SendPromptInput) (*ai.Response, error) {
	apiKey, err := s.ResolveAPIKey(ctx, store, p)
	if err != nil {
		return nil, err
	}

	p.ShowLoading()
	defer p.HideLoading()

	resp, err := s.client.GenerateContent(ctx, apiKey, input.Prompt)
	if err != nil {
		logging.FromContext(ctx).Error("ai request failed",
			"client_id", input.ClientID,
			"model", s.client.Model(),
			"grounding", input.Prompt.Grounding,
			"error", err,
		)
		p.Alert(MessageRequestFailed)
		publishActivity(ctx, s.publisher, model.ActivityEvent{
			Type:      model.ActivityPromptFailed,
			ClientID:  input.ClientID,
			Model:     s.client.Model(),
			Grounding: input.Prompt.Grounding,
		})
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	publishActivity(ctx, s.publisher, model.ActivityEvent{
		Type:      model.ActivityPromptCompleted,
		ClientID:  input.ClientID,
		Model:     s.client.Model(),
		Grounding: input.Prompt.Grounding,
		Sources:   len(resp.Sources),
	})
	return resp, nil
}

package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"fwk-assistant/internal/ai"
	"fwk-assistant/internal/kv"
	"fwk-assistant/internal/logging"
	"fwk-assistant/internal/model"
	"fwk-assistant/internal/session"
	"fwk-assistant/internal/view"
)

type stubClient struct {
	mu     sync.Mutex
	calls  int
	gotKey string
	resp   *ai.Response
	err    error
}

func (c *stubClient) GenerateContent(_ context.Context, apiKey string, _ ai.PromptRequest) (*ai.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.gotKey = apiKey
	return c.resp, c.err
}

func (c *stubClient) Model() string { return "test-model" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ActivityEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.ActivityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func newTestSessionStore() (*session.Store, *kv.MemoryStore) {
	backend := kv.NewMemoryStore()
	return session.NewStore(backend, "fwk_"), backend
}

func TestSendPromptWithoutKeyMakesNoCall(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{resp: &ai.Response{Text: "unused"}}
	svc := NewAssistantService(client, nil)

	for name, rec := range map[string]*view.Recorder{
		"no input element": view.NewRecorder(),
		"empty input":      view.NewRecorder(view.WithAPIKeyInput("")),
		"blank input":      view.NewRecorder(view.WithAPIKeyInput("   ")),
	} {
		t.Run(name, func(t *testing.T) {
			store, backend := newTestSessionStore()
			resp, err := svc.SendPrompt(ctx, store, rec, SendPromptInput{Prompt: ai.PromptRequest{Text: "hi"}})
			if !errors.Is(err, ErrNoAPIKey) {
				t.Fatalf("expected ErrNoAPIKey, got %v", err)
			}
			if resp != nil {
				t.Fatalf("expected no result, got %+v", resp)
			}
			alert, ok := rec.Last(view.ActionAlert)
			if !ok || alert.Value != MessageMissingAPIKey {
				t.Fatalf("expected missing key alert, got %+v", alert)
			}
			if _, ok := rec.Last(view.ActionShow); ok {
				t.Fatal("loading indicator must not be shown without a key")
			}
			if backend.Len() != 0 {
				t.Fatal("nothing should be stored without a key")
			}
		})
	}
	if client.calls != 0 {
		t.Fatalf("expected no network call, got %d", client.calls)
	}
}

func TestSendPromptSuccess(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{resp: &ai.Response{Text: "hello", Sources: []ai.Source{}}}
	pub := &recordingPublisher{}
	svc := NewAssistantService(client, pub)
	store, _ := newTestSessionStore()
	rec := view.NewRecorder(view.WithAPIKeyInput("AIza-1"))

	resp, err := svc.SendPrompt(ctx, store, rec, SendPromptInput{ClientID: "c1", Prompt: ai.PromptRequest{Text: "hi"}})
	if err != nil {
		t.Fatalf("SendPrompt: %v", err)
	}
	if resp.Text != "hello" || len(resp.Sources) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if client.gotKey != "AIza-1" {
		t.Fatalf("client got key %q", client.gotKey)
	}
	if saved, ok, _ := store.APIKey(ctx); !ok || saved != "AIza-1" {
		t.Fatalf("key not persisted, got %q", saved)
	}

	actions := rec.Actions()
	if len(actions) != 2 || actions[0].Type != view.ActionShow || actions[1].Type != view.ActionHide {
		t.Fatalf("expected show then hide, got %+v", actions)
	}
	if len(pub.events) != 1 || pub.events[0].Type != model.ActivityPromptCompleted || pub.events[0].ClientID != "c1" {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestSendPromptFailureHidesLoading(t *testing.T) {
	ctx := context.Background()
	upstream := errors.New("connection refused")
	client := &stubClient{err: upstream}
	svc := NewAssistantService(client, nil)
	store, _ := newTestSessionStore()
	rec := view.NewRecorder(view.WithAPIKeyInput("AIza-1"))

	resp, err := svc.SendPrompt(ctx, store, rec, SendPromptInput{Prompt: ai.PromptRequest{Text: "hi"}})
	if resp != nil {
		t.Fatalf("expected no result, got %+v", resp)
	}
	if !errors.Is(err, ErrRequestFailed) || !errors.Is(err, upstream) {
		t.Fatalf("expected ErrRequestFailed wrapping upstream, got %v", err)
	}
	if errors.Is(err, ErrNoAPIKey) {
		t.Fatal("request failure must be distinguishable from a missing key")
	}

	actions := rec.Actions()
	if len(actions) != 3 {
		t.Fatalf("expected show, alert, hide; got %+v", actions)
	}
	if actions[0].Type != view.ActionShow || actions[2].Type != view.ActionHide {
		t.Fatalf("loading indicator not cleaned up: %+v", actions)
	}
	if actions[1].Type != view.ActionAlert || actions[1].Value != MessageRequestFailed {
		t.Fatalf("expected generic alert, got %+v", actions[1])
	}
}

func TestSendPromptNoCandidatesIsRequestFailure(t *testing.T) {
	client := &stubClient{err: ai.ErrNoCandidates}
	svc := NewAssistantService(client, nil)
	store, _ := newTestSessionStore()

	_, err := svc.SendPrompt(context.Background(), store, view.NewRecorder(view.WithAPIKeyInput("k")), SendPromptInput{})
	if !errors.Is(err, ErrRequestFailed) || !errors.Is(err, ai.ErrNoCandidates) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSendPromptIgnoresPublisherErrors(t *testing.T) {
	client := &stubClient{resp: &ai.Response{Text: "ok"}}
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewAssistantService(client, pub)
	store, _ := newTestSessionStore()

	if _, err := svc.SendPrompt(context.Background(), store, view.NewRecorder(view.WithAPIKeyInput("k")), SendPromptInput{}); err != nil {
		t.Fatalf("publisher failure leaked into result: %v", err)
	}
}

func TestSendPromptFailureKeepsKeyOutOfLogs(t *testing.T) {
	var buf bytes.Buffer
	logging.Setup(&buf, "info")
	t.Cleanup(func() { logging.Setup(&bytes.Buffer{}, "info") })

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	const secret = "AIzaSECRET123"
	client := ai.NewGeminiClient(ai.GeminiConfig{BaseURL: baseURL, Model: "m"})
	svc := NewAssistantService(client, nil)
	store, _ := newTestSessionStore()

	_, err := svc.SendPrompt(context.Background(), store, view.NewRecorder(view.WithAPIKeyInput(secret)),
		SendPromptInput{ClientID: "c1", Prompt: ai.PromptRequest{Text: "hi"}})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if strings.Contains(err.Error(), secret) {
		t.Fatalf("api key leaked into returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "ai request failed") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
	if strings.Contains(buf.String(), secret) {
		t.Fatalf("api key leaked into log: %s", buf.String())
	}
}

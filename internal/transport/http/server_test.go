package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fwk-assistant/internal/ai"
	appsvc "fwk-assistant/internal/app"
	"fwk-assistant/internal/bootstrap"
	"fwk-assistant/internal/config"
	"fwk-assistant/internal/kv"
	httptransport "fwk-assistant/internal/transport/http"
	"fwk-assistant/internal/view"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	router      http.Handler
	geminiCalls *atomic.Int32
}

func newTestEnv(t *testing.T, geminiBody string, geminiStatus int) *testEnv {
	t.Helper()

	calls := &atomic.Int32{}
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(geminiStatus)
		_, _ = io.WriteString(w, geminiBody)
	}))
	t.Cleanup(gemini.Close)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.App.GinMode = "test"
	cfg.Web.StaticDir = ""

	app := &bootstrap.App{
		Config:    cfg,
		KV:        kv.NewMemoryStore(),
		Publisher: appsvc.NopPublisher{},
		Gemini:    ai.NewGeminiClient(ai.GeminiConfig{BaseURL: gemini.URL, Model: cfg.Gemini.Model, Timeout: 5 * time.Second}),
		StartedAt: time.Now(),
	}
	return &testEnv{router: httptransport.NewRouter(app), geminiCalls: calls}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

type actionsData struct {
	Actions []view.Action `json:"actions"`
}

func hasAction(actions []view.Action, actionType, value string) bool {
	for _, a := range actions {
		if a.Type == actionType && (value == "" || a.Value == value) {
			return true
		}
	}
	return false
}

func TestSessionAndPromptFlow(t *testing.T) {
	env := newTestEnv(t, `{"candidates":[{"content":{"parts":[{"text":"**hello**"}]},
		"groundingMetadata":{"groundingAttributions":[{"web":{"uri":"a","title":"A"}},{"web":{}}]}}]}`, 200)

	// Anonymous check off the entry page redirects.
	code, resp := env.do(t, http.MethodGet, "/api/v1/session/check?path=/chat.html", "", nil)
	if code != http.StatusOK {
		t.Fatalf("check: %d %s", code, resp.Message)
	}
	var check struct {
		actionsData
		Authenticated bool `json:"authenticated"`
		Redirected    bool `json:"redirected"`
	}
	_ = json.Unmarshal(resp.Data, &check)
	if check.Authenticated || !check.Redirected || !hasAction(check.Actions, view.ActionNavigate, "index.html") {
		t.Fatalf("expected redirect, got %+v", check)
	}

	// Login.
	code, resp = env.do(t, http.MethodPost, "/api/v1/session/login", "", map[string]string{"name": "Ada"})
	if code != http.StatusOK {
		t.Fatalf("login: %d %s", code, resp.Message)
	}
	var login struct {
		Token    string `json:"token"`
		ClientID string `json:"client_id"`
	}
	_ = json.Unmarshal(resp.Data, &login)
	if login.Token == "" || login.ClientID == "" {
		t.Fatalf("login returned no token: %s", resp.Data)
	}

	// Authenticated check shows the name.
	_, resp = env.do(t, http.MethodGet, "/api/v1/session/check?path=/chat.html", login.Token, nil)
	check.Actions = nil
	_ = json.Unmarshal(resp.Data, &check)
	if !check.Authenticated || check.Redirected || !hasAction(check.Actions, view.ActionSetText, "Ada") {
		t.Fatalf("expected authenticated check, got %+v", check)
	}
	if !hasAction(check.Actions, view.ActionBind, "") {
		t.Fatal("expected logout binding")
	}

	// Prompt without a key makes no upstream call.
	code, resp = env.do(t, http.MethodPost, "/api/v1/assistant/prompt", login.Token, map[string]any{"prompt": "hi"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", code)
	}
	var noKey actionsData
	_ = json.Unmarshal(resp.Data, &noKey)
	if !hasAction(noKey.Actions, view.ActionAlert, appsvc.MessageMissingAPIKey) {
		t.Fatalf("expected missing key alert, got %+v", noKey.Actions)
	}
	if env.geminiCalls.Load() != 0 {
		t.Fatal("no upstream call expected without key")
	}

	// Prompt with a key.
	code, resp = env.do(t, http.MethodPost, "/api/v1/assistant/prompt", login.Token, map[string]any{
		"prompt":    "hi",
		"grounding": true,
		"api_key":   "AIza-test",
	})
	if code != http.StatusOK {
		t.Fatalf("prompt: %d %s", code, resp.Message)
	}
	var prompt struct {
		actionsData
		Text    string      `json:"text"`
		HTML    string      `json:"html"`
		Sources []ai.Source `json:"sources"`
	}
	_ = json.Unmarshal(resp.Data, &prompt)
	if prompt.Text != "**hello**" || !strings.Contains(prompt.HTML, "<strong>hello</strong>") {
		t.Fatalf("unexpected prompt result %+v", prompt)
	}
	if len(prompt.Sources) != 1 || prompt.Sources[0].URI != "a" {
		t.Fatalf("unexpected sources %+v", prompt.Sources)
	}
	if !hasAction(prompt.Actions, view.ActionHide, "") {
		t.Fatal("loading indicator not hidden")
	}

	// The saved key comes back on the next page load.
	_, resp = env.do(t, http.MethodGet, "/api/v1/session/check?path=/vision.html", login.Token, nil)
	check.Actions = nil
	_ = json.Unmarshal(resp.Data, &check)
	if !hasAction(check.Actions, view.ActionSetValue, "AIza-test") {
		t.Fatalf("expected key restored, got %+v", check.Actions)
	}

	// Logout clears everything and navigates.
	code, resp = env.do(t, http.MethodPost, "/api/v1/session/logout", login.Token, nil)
	if code != http.StatusOK {
		t.Fatalf("logout: %d %s", code, resp.Message)
	}
	var logout actionsData
	_ = json.Unmarshal(resp.Data, &logout)
	if !hasAction(logout.Actions, view.ActionNavigate, "index.html") {
		t.Fatalf("expected navigation on logout, got %+v", logout.Actions)
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/session/check?path=/chat.html", login.Token, nil)
	check.Actions = nil
	_ = json.Unmarshal(resp.Data, &check)
	if check.Authenticated || !check.Redirected {
		t.Fatalf("expected redirect after logout, got %+v", check)
	}
	if hasAction(check.Actions, view.ActionSetValue, "") {
		t.Fatal("api key must be gone after logout")
	}
}

func TestPromptUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, `{"error":{"code":500}}`, 500)

	_, resp := env.do(t, http.MethodPost, "/api/v1/session/login", "", map[string]string{"name": "Ada"})
	var login struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(resp.Data, &login)

	code, resp := env.do(t, http.MethodPost, "/api/v1/assistant/prompt", login.Token, map[string]any{
		"prompt":  "hi",
		"api_key": "k",
	})
	if code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", code)
	}
	var failed actionsData
	_ = json.Unmarshal(resp.Data, &failed)
	if !hasAction(failed.Actions, view.ActionAlert, appsvc.MessageRequestFailed) {
		t.Fatalf("expected generic alert, got %+v", failed.Actions)
	}
	last := failed.Actions[len(failed.Actions)-1]
	if last.Type != view.ActionHide || last.Target != view.ElementLoading {
		t.Fatalf("loading indicator must be hidden last, got %+v", failed.Actions)
	}
}

func TestPromptRequiresToken(t *testing.T) {
	env := newTestEnv(t, `{}`, 200)
	code, _ := env.do(t, http.MethodPost, "/api/v1/assistant/prompt", "", map[string]any{"prompt": "hi", "api_key": "k"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestPromptRejectsBadImage(t *testing.T) {
	env := newTestEnv(t, `{}`, 200)
	_, resp := env.do(t, http.MethodPost, "/api/v1/session/login", "", map[string]string{"name": "Ada"})
	var login struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(resp.Data, &login)

	code, _ := env.do(t, http.MethodPost, "/api/v1/assistant/prompt", login.Token, map[string]any{
		"prompt": "what is this", "image": "%%%", "api_key": "k",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if env.geminiCalls.Load() != 0 {
		t.Fatal("bad image must not reach upstream")
	}
}

func TestLogoutWithoutSessionStillNavigates(t *testing.T) {
	env := newTestEnv(t, `{}`, 200)
	code, resp := env.do(t, http.MethodPost, "/api/v1/session/logout", "", nil)
	if code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
	var logout actionsData
	_ = json.Unmarshal(resp.Data, &logout)
	if !hasAction(logout.Actions, view.ActionNavigate, "index.html") {
		t.Fatalf("expected navigation, got %+v", logout.Actions)
	}
}

func TestRenderEndpoint(t *testing.T) {
	env := newTestEnv(t, `{}`, 200)
	code, resp := env.do(t, http.MethodPost, "/api/v1/render", "", map[string]string{"text": "<b>x</b>"})
	if code != http.StatusOK {
		t.Fatalf("render: %d", code)
	}
	var out struct {
		HTML string `json:"html"`
	}
	_ = json.Unmarshal(resp.Data, &out)
	if !strings.Contains(out.HTML, "&lt;b&gt;x&lt;/b&gt;") || strings.Contains(out.HTML, "<b>") {
		t.Fatalf("expected escaped html, got %q", out.HTML)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, `{}`, 200)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestLoginAcceptsMultibyteName(t *testing.T) {
	env := newTestEnv(t, `{}`, 200)
	name := strings.Repeat("名", 30)
	code, resp := env.do(t, http.MethodPost, "/api/v1/session/login", "", map[string]string{"name": name})
	if code != http.StatusOK {
		t.Fatalf("login: %d %s", code, resp.Message)
	}
}

func TestShippedPageMatchesViewContract(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.App.GinMode = "test"
	cfg.Web.StaticDir = filepath.Join("..", "..", "..", "web")

	router := httptransport.NewRouter(&bootstrap.App{
		Config:    cfg,
		KV:        kv.NewMemoryStore(),
		Publisher: appsvc.NopPublisher{},
		Gemini:    ai.NewGeminiClient(ai.GeminiConfig{BaseURL: "http://127.0.0.1:0", Model: cfg.Gemini.Model}),
		StartedAt: time.Now(),
	})

	get := func(path string) string {
		t.Helper()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: %d", path, w.Code)
		}
		return w.Body.String()
	}

	page := get("/")
	for _, id := range []string{view.ElementUserName, view.ElementAPIKey, view.ElementLoading, view.ElementLogout} {
		if !strings.Contains(page, `id="`+id+`"`) {
			t.Errorf("entry page has no element %q", id)
		}
	}

	script := get("/app.js")
	for _, actionType := range []string{
		view.ActionSetText, view.ActionSetValue, view.ActionShow, view.ActionHide,
		view.ActionAlert, view.ActionNavigate, view.ActionBind,
	} {
		if !strings.Contains(script, "'"+actionType+"'") {
			t.Errorf("page script does not apply %q actions", actionType)
		}
	}
	for _, path := range []string{"/session/check", "/assistant/prompt", "api_key"} {
		if !strings.Contains(script, path) {
			t.Errorf("page script never uses %q", path)
		}
	}
}

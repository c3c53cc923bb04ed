package session

import (
	"context"
	"strings"

	"fwk-assistant/internal/logging"
	"fwk-assistant/internal/model"
	"fwk-assistant/internal/view"
)

// Manager runs the page-load session check and logout against a client's
// Store.
type Manager struct {
	entryPage string
}

type CheckResult struct {
	Session    *model.Session
	Redirected bool
}

func NewManager(entryPage string) *Manager {
	entryPage = strings.TrimSpace(entryPage)
	if entryPage == "" {
		entryPage = "index.html"
	}
	return &Manager{entryPage: entryPage}
}

func (m *Manager) EntryPage() string {
	return m.entryPage
}

// IsEntryPage reports whether path is the entry page or a directory root.
func (m *Manager) IsEntryPage(path string) bool {
	return strings.HasSuffix(path, m.entryPage) || strings.HasSuffix(path, "/")
}

// Check sends a client without a session back to the entry page. Otherwise it
// shows the user's name. A saved API key is put back into the key input either
// way.
func (m *Manager) Check(ctx context.Context, store *Store, p view.Presenter, currentPath string) (CheckResult, error) {
	var result CheckResult

	sess, err := store.Session(ctx)
	if err != nil {
		return result, err
	}
	result.Session = sess

	if sess == nil && !m.IsEntryPage(currentPath) {
		logging.FromContext(ctx).Debug("no session, redirecting", "path", currentPath, "target", m.entryPage)
		p.Navigate(m.entryPage)
		result.Redirected = true
	}
	if sess != nil {
		p.ShowUserName(sess.Name)
	}

	savedKey, ok, err := store.APIKey(ctx)
	if err != nil {
		return result, err
	}
	if ok {
		if _, hasInput := p.APIKeyInput(); hasInput {
			p.SetAPIKeyInput(savedKey)
		}
	}
	return result, nil
}

// OnPageLoad runs Check and then wires up the logout button.
func (m *Manager) OnPageLoad(ctx context.Context, store *Store, p view.Presenter, currentPath string) (CheckResult, error) {
	result, err := m.Check(ctx, store, p, currentPath)
	if err != nil {
		return result, err
	}
	p.BindLogout()
	return result, nil
}

// End clears the session and API key and returns to the entry page. The
// page is navigated away even if clearing fails.
func (m *Manager) End(ctx context.Context, store *Store, p view.Presenter) error {
	err := store.Clear(ctx)
	p.Navigate(m.entryPage)
	return err
}

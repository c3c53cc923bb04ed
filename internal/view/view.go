// Package view binds session and prompt side effects to whatever is
// displaying them. Every element is optional: a presenter may drop any call.
package view

// Element ids the page exposes.
const (
	ElementUserName = "user-display-name"
	ElementAPIKey   = "api-key-input"
	ElementLoading  = "loading-indicator"
	ElementLogout   = "logout-btn"
)

type Presenter interface {
	ShowUserName(name string)
	// APIKeyInput returns the current key input value. ok is false when
	// there is no key input to read from.
	APIKeyInput() (value string, ok bool)
	SetAPIKeyInput(key string)
	ShowLoading()
	HideLoading()
	Alert(message string)
	Navigate(path string)
	BindLogout()
}

// Nop is a Presenter for headless callers.
type Nop struct{}

var _ Presenter = Nop{}

func (Nop) ShowUserName(string) {}
func (Nop) APIKeyInput() (string, bool) { return "", false }
func (Nop) SetAPIKeyInput(string) {}
func (Nop) ShowLoading() {}
func (Nop) HideLoading() {}
func (Nop) Alert(string) {}
func (Nop) Navigate(string) {}
func (Nop) BindLogout() {}

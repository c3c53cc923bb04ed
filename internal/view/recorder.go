package view

import "sync"

const (
	ActionSetText  = "set_text"
	ActionSetValue = "set_value"
	ActionShow     = "show"
	ActionHide     = "hide"
	ActionAlert    = "alert"
	ActionNavigate = "navigate"
	ActionBind     = "bind"
)

// Action is one DOM side effect for the page to apply, in order.
type Action struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Recorder collects actions so they can be shipped to the page as JSON.
type Recorder struct {
	mu        sync.Mutex
	actions   []Action
	keyInput  string
	hasInput  bool
	logoutURL string
}

var _ Presenter = (*Recorder)(nil)

type RecorderOption func(*Recorder)

// WithAPIKeyInput makes the recorder behave as if the page has a key input
// holding value.
func WithAPIKeyInput(value string) RecorderOption {
	return func(r *Recorder) {
		r.keyInput = value
		r.hasInput = true
	}
}

// WithLogoutURL sets the endpoint the logout button is bound to.
func WithLogoutURL(url string) RecorderOption {
	return func(r *Recorder) {
		r.logoutURL = url
	}
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) ShowUserName(name string) {
	r.record(Action{Type: ActionSetText, Target: ElementUserName, Value: name})
}

func (r *Recorder) APIKeyInput() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keyInput, r.hasInput
}

func (r *Recorder) SetAPIKeyInput(key string) {
	r.mu.Lock()
	r.keyInput = key
	r.hasInput = true
	r.mu.Unlock()
	r.record(Action{Type: ActionSetValue, Target: ElementAPIKey, Value: key})
}

func (r *Recorder) ShowLoading() {
	r.record(Action{Type: ActionShow, Target: ElementLoading})
}

func (r *Recorder) HideLoading() {
	r.record(Action{Type: ActionHide, Target: ElementLoading})
}

func (r *Recorder) Alert(message string) {
	r.record(Action{Type: ActionAlert, Value: message})
}

func (r *Recorder) Navigate(path string) {
	r.record(Action{Type: ActionNavigate, Value: path})
}

func (r *Recorder) BindLogout() {
	r.record(Action{Type: ActionBind, Target: ElementLogout, Value: r.logoutURL})
}

// Actions returns a copy of everything recorded so far.
func (r *Recorder) Actions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// Last returns the most recent action of the given type.
func (r *Recorder) Last(actionType string) (Action, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.actions) - 1; i >= 0; i-- {
		if r.actions[i].Type == actionType {
			return r.actions[i], true
		}
	}
	return Action{}, false
}

func (r *Recorder) record(a Action) {
	r.mu.Lock()
	r.actions = append(r.actions, a)
	r.mu.Unlock()
}

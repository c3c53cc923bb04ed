package model

// Session marks a logged-in browser client. It exists or it does not.
type Session struct {
	Name string `json:"name"`
}

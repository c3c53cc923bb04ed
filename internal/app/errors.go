package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAccessCode = errors.New("invalid access code")
	// ErrNoAPIKey means the user did not supply a key. No request was made.
	ErrNoAPIKey = errors.New("api key is missing")
	// ErrRequestFailed wraps every failure of the generation call itself.
	ErrRequestFailed = errors.New("ai request failed")
)

const (
	MessageMissingAPIKey = "Please enter your Gemini API Key in the header."
	MessageRequestFailed = "AI Error: Check console for details."
)

package settlement

import "errors"

var (
	ErrMissingSessionID = errors.New("external session id is required")
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrSessionMismatch  = errors.New("checkout session does not match the request")
	ErrMalformedSession = errors.New("checkout session metadata is malformed")
)

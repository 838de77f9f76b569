package processor

import "errors"

var (
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidRequest       = errors.New("invalid checkout request")
)

package model

import "errors"

var (
	// Session related errors
	ErrNoSession     = errors.New("no authenticated session")
	ErrStaleResponse = errors.New("response superseded by a newer fetch")

	// Realtime related errors
	ErrConnectionClosed  = errors.New("realtime connection closed")
	ErrReconnectGaveUp   = errors.New("realtime reconnect attempts exhausted")
	ErrHandlerRegistered = errors.New("handler already registered")

	// Remote lookups
	ErrPersonNotFound    = errors.New("person not found")
	ErrEmergencyNotFound = errors.New("emergency not found")
	ErrTokenNotFound     = errors.New("token not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

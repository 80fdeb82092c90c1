package model

import "encoding/json"

type APIResponse struct {
	Success    bool      `json:"success"`
	Data       any       `json:"data,omitempty"`
	Error      *APIError `json:"error,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Envelope is the client-side view of APIResponse with the payload left raw
// until the caller knows the call succeeded.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      *APIError       `json:"error,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
}

type PaginatedResponse[T any] struct {
	Data            []T    `json:"data"`
	PaginationToken string `json:"paginationToken,omitempty"`
}

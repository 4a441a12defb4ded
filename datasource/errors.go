package datasource

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned before any I/O when a request fails validation
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoData means the provider answered but had nothing for the query
	ErrNoData = errors.New("no data")
)

// codeNoMatchingLocation is the provider's error code for an unknown q parameter
const codeNoMatchingLocation = 1006

// APIError is a non-2xx answer from the provider
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// parseAPIError builds an APIError from the provider's error envelope,
// falling back to the raw body when it is not JSON.
func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != 0 {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}
	apiErr.Message = string(body)
	return apiErr
}

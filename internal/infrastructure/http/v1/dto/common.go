// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"mise/internal/core/apperror"
	"mise/internal/core/id"
)

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ParseID parses a string id, reporting which field was malformed.
func ParseID(value, field string) (id.ID, error) {
	parsed, err := id.Parse(value)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return parsed, nil
}

// ParseIDs parses a slice of string ids.
func ParseIDs(values []string, field string) ([]id.ID, error) {
	out := make([]id.ID, 0, len(values))
	for _, v := range values {
		parsed, err := ParseID(v, field)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

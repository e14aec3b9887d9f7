package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/shambu-network/shambu/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResult creates a tool result containing a structured error. Use it
// for errors the caller can act on; backend failures are returned as Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// asErrorResult converts caller-actionable domain errors to a result. It
// returns nil for anything else.
func asErrorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error())
	case errors.Is(err, apperrors.ErrInvalidProfile),
		errors.Is(err, apperrors.ErrInvalidConnectionType),
		errors.Is(err, apperrors.ErrInvalidStrength),
		errors.Is(err, apperrors.ErrInvalidConnection):
		return NewErrorResult("invalid_parameters", err.Error())
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

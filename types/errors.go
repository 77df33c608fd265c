/*
Copyright © 2025 The Forge Authors
*/
package types

import "fmt"

// OpError provides structured error information at operation boundaries.
// Failures crossing the cache/dispatch/review boundary are converted into
// one of these so callers can surface a non-blocking notification without
// inspecting wrapped error chains.
type OpError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewOpError creates a new structured operation error
func NewOpError(code string, message string, details map[string]interface{}) *OpError {
	return &OpError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

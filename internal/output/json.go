package output

import (
	"encoding/json"
	"io"
)

// ErrorCode represents a machine-readable error classification.
type ErrorCode string

// Error code constants.
const (
	ErrGeneral     ErrorCode = "GENERAL_ERROR"
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCredential  ErrorCode = "CREDENTIAL_ERROR"
	ErrSource      ErrorCode = "SOURCE_ERROR"
	ErrEmptyResult ErrorCode = "EMPTY_RESULT"
	ErrWarehouse   ErrorCode = "WAREHOUSE_ERROR"
	ErrCancelled   ErrorCode = "CANCELLED"
)

// Exit code constants.
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitNotFound    = 2
	ExitValidation  = 3
	ExitCredential  = 4
	ExitSource      = 5
	ExitEmptyResult = 6
	ExitWarehouse   = 7
	ExitCancelled   = 8
)

// ExitCodeForError maps an ErrorCode to its corresponding exit code.
func ExitCodeForError(code ErrorCode) int {
	switch code {
	case ErrNotFound:
		return ExitNotFound
	case ErrValidation:
		return ExitValidation
	case ErrCredential:
		return ExitCredential
	case ErrSource:
		return ExitSource
	case ErrEmptyResult:
		return ExitEmptyResult
	case ErrWarehouse:
		return ExitWarehouse
	case ErrCancelled:
		return ExitCancelled
	default:
		return ExitGeneral
	}
}

// successEnvelope is the JSON structure for successful responses.
type successEnvelope struct {
	OK       bool     `json:"ok"`
	Data     any      `json:"data"`
	Message  string   `json:"message,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// errorEnvelope is the JSON structure for error responses.
type errorEnvelope struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error"`
	Code     ErrorCode `json:"code"`
	Warnings []string  `json:"warnings,omitempty"`
}

// writeJSONSuccess writes a success envelope to w.
func writeJSONSuccess(w io.Writer, data any, message string, warnings []string) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(successEnvelope{
		OK:       true,
		Data:     data,
		Message:  message,
		Warnings: warnings,
	})
}

// writeJSONError writes an error envelope to w.
func writeJSONError(w io.Writer, err error, code ErrorCode, warnings []string) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(errorEnvelope{
		OK:       false,
		Error:    err.Error(),
		Code:     code,
		Warnings: warnings,
	})
}

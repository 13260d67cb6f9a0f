package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ProviderUnavailable indicates no query provider was supplied to the engine
	ProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	// QueryFailed indicates the provider call itself returned an error
	QueryFailed ErrorCode = "QUERY_FAILED"
	// QueryUnsuccessful indicates the provider answered with an unsuccessful result
	QueryUnsuccessful ErrorCode = "QUERY_UNSUCCESSFUL"
	// InvalidQuery indicates query text that does not follow the aggregation dialect
	InvalidQuery ErrorCode = "INVALID_QUERY"
	// IndexMissing indicates the vault has not been indexed yet
	IndexMissing ErrorCode = "INDEX_MISSING"
	// ConfigInvalid indicates a configuration or visualisation block problem
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests changing configuration
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// TagvisError carries a code, a message and suggestions.
type TagvisError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a TagvisError and attaches the default fixes for its code.
func New(code ErrorCode, message string, cause error) *TagvisError {
	return &TagvisError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *TagvisError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *TagvisError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TagvisError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *TagvisError) WithDetails(details interface{}) *TagvisError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first TagvisError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var te *TagvisError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return InternalError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	IndexMissing: {
		{
			Type:        RunCommand,
			Command:     "tagvis index",
			Safe:        true,
			Description: "Build the vault tag index",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "tagvis config show",
			Safe:        true,
			Description: "Inspect the effective configuration",
		},
		{
			Type:        EditConfig,
			Description: "Fix the offending field in .tagvis/config.json",
		},
	},
	ProviderUnavailable: {
		{
			Type:        RunCommand,
			Command:     "tagvis index",
			Safe:        true,
			Description: "Create the vault index the query provider reads from",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

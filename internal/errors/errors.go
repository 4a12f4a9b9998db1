package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates a configuration value could not be used
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// StrategyUnnamed indicates a chain entry without a strategy name
	StrategyUnnamed ErrorCode = "STRATEGY_UNNAMED"
	// StrategyUnknown indicates a chain entry naming an unregistered strategy
	StrategyUnknown ErrorCode = "STRATEGY_UNKNOWN"
	// StrategyDuplicate indicates a second registration under the same name
	StrategyDuplicate ErrorCode = "STRATEGY_DUPLICATE"
	// OptionMissing indicates a required strategy option is absent
	OptionMissing ErrorCode = "OPTION_MISSING"
	// OptionInvalid indicates a strategy option has the wrong shape
	OptionInvalid ErrorCode = "OPTION_INVALID"
	// SnapshotMissing indicates no saved graph exists for the repository
	SnapshotMissing ErrorCode = "SNAPSHOT_MISSING"
	// FileUnreadable indicates a source file could not be read
	FileUnreadable ErrorCode = "FILE_UNREADABLE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests changing the configuration file
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// WalkerError is an error with a stable code and optional fix suggestions.
type WalkerError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a WalkerError. Fixes default to the ones registered for code.
func New(code ErrorCode, message string, cause error) *WalkerError {
	return &WalkerError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf creates a WalkerError with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *WalkerError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *WalkerError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *WalkerError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *WalkerError) WithDetails(details interface{}) *WalkerError {
	e.Details = details
	return e
}

// Is matches another WalkerError by code, so errors.Is(err, &WalkerError{Code: X}) works.
func (e *WalkerError) Is(target error) bool {
	t, ok := target.(*WalkerError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HasCode reports whether err is, or wraps, a WalkerError with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if we, ok := err.(*WalkerError); ok && we.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	SnapshotMissing: {
		{
			Type:        RunCommand,
			Command:     "walker scan --save",
			Safe:        true,
			Description: "Analyze the repository and save a graph snapshot",
		},
	},
	StrategyUnknown: {
		{
			Type:        EditConfig,
			Description: "Use a registered strategy name (finders: regex; resolvers: basic, common-js)",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "walker config show",
			Safe:        true,
			Description: "Inspect the effective configuration",
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

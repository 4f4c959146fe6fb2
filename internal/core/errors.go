package core

// errors.go maps technical errors to user-friendly messages with codes for
// support reference. Users quote the code; support staff look it up here.
//
// Sentinel errors are matched first with errors.Is, so wrapping never hides
// them. Everything else falls through to a case-insensitive substring table
// where the first matching pattern wins.
//
//	GRID001 - Unknown column            GRID002 - Unknown row
//	GRID003 - Column is not editable    GRID004 - Commit already running
//	GRID005 - Invalid page size         GRID006 - Duplicate case identifier
//	SES001  - Session not found         SES002  - Too many open sessions
//	SCR001  - Screen not found
//	VAL001  - Invalid number            VAL002  - Value not in the list
//	VAL003  - Value too long            VAL004  - Required value missing
//	DB001   - Duplicate key             DB002   - Unique constraint
//	DB003   - Foreign key               DB004   - Connection refused
//	DB005   - Connection reset          DB006   - Timeout
//	DB007   - Deadlock
//	LOAD001 - Too many loads            LOAD002 - Superseded by a newer load
//	REQ001  - Request cancelled         REQ002  - Request timed out
//	RATE001 - Rate limited
//	ERR000  - Unknown error; check the logs for the technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrScreenNotFound  = errors.New("screen not found")
	ErrInvalidValue    = errors.New("invalid value")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{grid.ErrUnknownColumn, UserMessage{"Unknown column", "Refresh the page and try again", "GRID001"}},
	{grid.ErrUnknownRow, UserMessage{"This case is no longer in the list", "Refresh the data and try again", "GRID002"}},
	{grid.ErrNotEditable, UserMessage{"This column cannot be edited", "Only highlighted columns accept changes", "GRID003"}},
	{grid.ErrCommitInProgress, UserMessage{"Changes are already being saved", "Wait for the current save to finish", "GRID004"}},
	{grid.ErrInvalidPageSize, UserMessage{"Invalid page size", "Choose at least one row per page", "GRID005"}},
	{grid.ErrDuplicateIdentifier, UserMessage{"The data contains the same case twice", "Contact support with this code", "GRID006"}},
	{grid.ErrMissingIdentifier, UserMessage{"The data contains a case without a radicado", "Contact support with this code", "GRID006"}},
	{grid.ErrNotFilterable, UserMessage{"This column cannot be filtered", "Filter on another column", "GRID007"}},
	{grid.ErrFilterShape, UserMessage{"Invalid filter for this column", "Send one value, or a list of values for multi-choice columns", "GRID008"}},
	{ErrSessionNotFound, UserMessage{"Session not found", "The session may have expired. Open the screen again", "SES001"}},
	{ErrTooManySessions, UserMessage{"Too many open sessions", "Close unused tabs and try again", "SES002"}},
	{ErrScreenNotFound, UserMessage{"Screen not found", "Verify the screen name is correct", "SCR001"}},
	{ErrTooManyLoads, UserMessage{"System is busy loading other screens", "Please wait a moment and try again", "LOAD001"}},
	{loader.ErrSuperseded, UserMessage{"A newer reload replaced this one", "No action needed", "LOAD002"}},
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{context.DeadlineExceeded, UserMessage{"Request timed out", "Narrow the date range or try again later", "REQ002"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// Validation
	{"invalid number", UserMessage{"Invalid number format", "Use digits with an optional decimal point", "VAL001"}},
	{"not in the allowed list", UserMessage{"Value is not in the allowed list", "Pick one of the listed values", "VAL002"}},
	{"value too long", UserMessage{"Value is too long", "Shorten the text and try again", "VAL003"}},
	{"required value", UserMessage{"A value is required", "Enter a value before saving", "VAL004"}},

	{"caso not found", UserMessage{"The case no longer exists", "Reload the screen to drop deleted cases", "VAL005"}},

	// Database constraints
	{"duplicate key", UserMessage{"A record with this ID already exists", "Refresh the data and review the case", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Choose a different value", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Choose a different value", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist", "Refresh the reference lists and try again", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Refresh the reference lists and try again", "DB003"}},
	{"violates not-null", UserMessage{"A value is required", "Enter a value before saving", "VAL004"}},

	// Database connection
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Narrow the date range or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If nothing matches, a generic fallback message with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

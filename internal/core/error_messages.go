package core

// # Error Codes Reference
//
// User-facing messages carry a code that can be quoted to support.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - File too large: The file exceeds the import size limit
//	         Patterns: "file too large"
//	IMP002 - No file: No file was selected
//	         Patterns: "no file provided"
//	IMP003 - Not a CSV: Only .csv exports can be imported
//	         Patterns: "invalid file type"
//
// # Triage Run Errors (RUN001-RUN099)
//
//	RUN001 - No dataset: Nothing has been imported yet
//	RUN002 - Nothing pending: Every clash has already been triaged
//	RUN003 - Run in progress: Only one triage run may be active
//	RUN004 - Run not found: The run id is unknown or has expired
//	RUN005 - Request cancelled ("context canceled")
//	RUN006 - Request timeout ("context deadline exceeded")
//
// # Classifier Errors (AI001-AI099)
//
//	AI001 - Missing API key: Classification is disabled
//	AI002 - Unknown provider: The configured AI provider is not supported
//	AI003 - Rejected credentials: The provider refused the API key
//	AI004 - Quota exhausted: The provider is throttling requests
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgFileTooLarge = UserMessage{
		Message: "The file exceeds the import size limit",
		Action:  "Split the clash report into smaller exports",
		Code:    "IMP001",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Choose a Navisworks clash report (.csv) to import",
		Code:    "IMP002",
	}
	msgNotCSV = UserMessage{
		Message: "Only CSV clash reports can be imported",
		Action:  "Export the clash test from Navisworks as CSV",
		Code:    "IMP003",
	}
	msgNoDataset = UserMessage{
		Message: "No clash report has been imported",
		Action:  "Import a clash report first",
		Code:    "RUN001",
	}
	msgNothingPending = UserMessage{
		Message: "There are no pending clashes to triage",
		Action:  "Retry failed clashes or import a new report",
		Code:    "RUN002",
	}
	msgRunInProgress = UserMessage{
		Message: "A triage run is already in progress",
		Action:  "Wait for it to finish or cancel it",
		Code:    "RUN003",
	}
	msgRunNotFound = UserMessage{
		Message: "Triage run not found",
		Action:  "The run may have expired. Start a new run",
		Code:    "RUN004",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN005",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "RUN006",
	}
	msgMissingKey = UserMessage{
		Message: "Missing API Key",
		Action:  "Set API_KEY (or GEMINI_API_KEY) and restart to enable triage",
		Code:    "AI001",
	}
	msgUnknownProvider = UserMessage{
		Message: "The configured AI provider is not supported",
		Action:  "Set AI_PROVIDER to gemini, openai or anthropic",
		Code:    "AI002",
	}
	msgRejectedKey = UserMessage{
		Message: "The AI provider rejected the API key",
		Action:  "Check that the API key is valid for the configured provider",
		Code:    "AI003",
	}
	msgQuota = UserMessage{
		Message: "The AI provider is throttling requests",
		Action:  "Wait a few minutes, then retry the failed clashes",
		Code:    "AI004",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

var errorPatterns = []errorPattern{
	{"file too large", msgFileTooLarge},
	{"request body too large", msgFileTooLarge},
	{"no file provided", msgNoFile},
	{"invalid file type", msgNotCSV},

	{"no dataset loaded", msgNoDataset},
	{"no pending clashes", msgNothingPending},
	{"already in progress", msgRunInProgress},
	{"run not found", msgRunNotFound},

	{"missing api key", msgMissingKey},
	{"unknown provider", msgUnknownProvider},
	{"401", msgRejectedKey},
	{"unauthorized", msgRejectedKey},
	{"permission denied", msgRejectedKey},
	{"resource_exhausted", msgQuota},
	{"resource exhausted", msgQuota},
	{"quota", msgQuota},
	{"429", msgQuota},

	{"rate limit", msgRateLimited},

	{"context canceled", msgCancelled},
	{"context deadline exceeded", msgTimeout},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
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

package core

import "errors"

// Sentinel errors returned by the Session. Their text is matched by the
// user-facing catalogue in error_messages.go.
var (
	ErrNoDataset             = errors.New("no dataset loaded")
	ErrNothingPending        = errors.New("no pending clashes to triage")
	ErrRunInProgress         = errors.New("triage run already in progress")
	ErrRunNotFound           = errors.New("triage run not found")
	ErrClassifierUnavailable = errors.New("classifier unavailable: missing api key")
	ErrFileTooLarge          = errors.New("file too large")
	ErrNoFile                = errors.New("no file provided")
	ErrNotCSV                = errors.New("invalid file type: expected .csv")
)

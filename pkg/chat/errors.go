package chat

import "errors"

// Failure classes of a chat turn. None of them reach the caller; they label logs
// and metrics.
var (
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrScoringFailed     = errors.New("sentiment scoring failed")
	ErrPersistence       = errors.New("persistence failed")
	ErrUnexpected        = errors.New("unexpected failure")
)

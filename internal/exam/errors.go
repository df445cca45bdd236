package exam

import "errors"

// Domain errors surfaced by the session state machine. Handlers map
// these to API error codes at the edge.
var (
	// ErrAlreadyStarted means Start (or Timer.Start) was called on a
	// session that already left NOT_STARTED.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotStarted means an in-progress-only operation was called
	// before Start.
	ErrNotStarted = errors.New("session not started")

	// ErrSubmitted means a mutating operation was attempted after the
	// terminal transition.
	ErrSubmitted = errors.New("session already submitted")

	// ErrIndexOutOfRange means GoTo was called with an index outside
	// the bound question bank.
	ErrIndexOutOfRange = errors.New("position index out of range")

	// ErrUnknownQuestion means the question id does not belong to the
	// bound bank.
	ErrUnknownQuestion = errors.New("question not in bank")

	// ErrInvalidAnswer means the payload variant does not match the
	// question type, or an option index is out of range. Recoverable:
	// the session stays in progress and no checkpoint is written.
	ErrInvalidAnswer = errors.New("invalid answer payload")

	// ErrCorruptState means a persisted snapshot is internally
	// inconsistent and was refused. The caller should discard it and
	// start fresh.
	ErrCorruptState = errors.New("corrupt session snapshot")
)

package websocket

import "github.com/examtrail/examtrail-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionClear    Action = "clear"
	ActionPosition Action = "position"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the single client message shape. Which fields are
// meaningful depends on the action.
type RequestPayload struct {
	Action   Action  `json:"action"`
	QID      string  `json:"q_id,omitempty"`
	Selected []int   `json:"selected,omitempty"`
	Text     *string `json:"text,omitempty"`
	Index    *int    `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventState     Event = "state"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventTick      Event = "tick"
	EventPong      Event = "pong"
)

// StateResponse carries the full session view, sent on connect so the
// client can rebuild its screen.
type StateResponse struct {
	Event Event              `json:"event"`
	State model.SessionState `json:"state"`
}

// SavedResponse acknowledges an answer, clear or position change.
type SavedResponse struct {
	Event            Event   `json:"event"`
	QID              string  `json:"q_id,omitempty"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// SubmittedResponse announces the terminal transition, whether the
// learner submitted or the timer ran out.
type SubmittedResponse struct {
	Event  Event                   `json:"event"`
	Forced bool                    `json:"forced"`
	Report *model.SubmissionReport `json:"report"`
}

// TickResponse is the periodic countdown push.
type TickResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

package audit

import "time"

// Action names the domain operation an event records.
type Action string

const (
	ActionRecordSaved    Action = "record_saved"
	ActionRecordLoaded   Action = "record_loaded"
	ActionRecordCleared  Action = "record_cleared"
	ActionCodeSwitched   Action = "code_switched"
	ActionRecordImported Action = "record_imported"
	ActionRecordExported Action = "record_exported"
	ActionSubmission     Action = "submission_built"
	ActionSweepCompleted Action = "sweep_completed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Code      string    `json:"code,omitempty"`
	Action    Action    `json:"action"`
	RequestID string    `json:"requestId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

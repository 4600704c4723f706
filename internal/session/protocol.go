package session

import (
	"github.com/trustdev-org/calendar-diary/internal/cloudsync"
	"github.com/trustdev-org/calendar-diary/internal/models"
)

// Message types sent by the client.
const (
	TypeAction   = "action"
	TypeDecision = "decision"
)

// Message types sent by the server.
const (
	TypeEvent           = "event"
	TypeDecisionRequest = "decision_request"
	TypeResult          = "result"
	TypeError           = "error"
)

// Actions a client may request.
const (
	ActionStatus  = "status"
	ActionSync    = "sync"
	ActionBackup  = "backup"
	ActionList    = "list"
	ActionRestore = "restore"
	ActionDelete  = "delete"
)

// Decision kinds carried by a decision request.
const (
	DecisionConflict = "conflict"
	DecisionRestore  = "restore"
	DecisionDelete   = "delete"
)

// ClientMessage is a frame from the UI. Actions carry Action and, for
// restore and delete, Filename. Decisions answer a request by ID with one
// of the offered choices.
type ClientMessage struct {
	Type     string `json:"type"`
	Action   string `json:"action,omitempty"`
	Filename string `json:"filename,omitempty"`
	ID       string `json:"id,omitempty"`
	Choice   string `json:"choice,omitempty"`
}

// ServerMessage is a frame sent to the UI.
type ServerMessage struct {
	Type string `json:"type"`

	Event *cloudsync.Event `json:"event,omitempty"`

	ID       string                    `json:"id,omitempty"`
	Decision string                    `json:"decision,omitempty"`
	Choices  []string                  `json:"choices,omitempty"`
	Conflict *cloudsync.Conflict       `json:"conflict,omitempty"`
	Restore  *cloudsync.RestoreRequest `json:"restore,omitempty"`
	Delete   *cloudsync.DeleteRequest  `json:"delete,omitempty"`

	Action  string            `json:"action,omitempty"`
	Result  *cloudsync.Result `json:"result,omitempty"`
	Status  *cloudsync.Status `json:"status,omitempty"`
	Backups []models.Backup   `json:"backups,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func choiceNames[T interface{ String() string }](choices []T) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.String()
	}

	return out
}

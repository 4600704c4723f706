package cloudsync

import (
	"fmt"
	"time"
)

// State is a step of the sync state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateComparing
	StateUploading
	StateDownloading
	StateAwaitingConflictChoice
	StateUpToDate
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                   "idle",
	StateConnecting:             "connecting",
	StateComparing:              "comparing",
	StateUploading:              "uploading",
	StateDownloading:            "downloading",
	StateAwaitingConflictChoice: "awaiting_conflict_choice",
	StateUpToDate:               "up_to_date",
	StateFailed:                 "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}

	return fmt.Errorf("unknown sync state %q", text)
}

// Level grades a log event for display.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Kind distinguishes log lines from state transitions and reload
// notices.
type Kind string

const (
	// KindLog is a human-readable log line.
	KindLog Kind = "log"
	// KindState reports a state machine transition.
	KindState Kind = "state"
	// KindReload tells the UI the local documents were replaced and must
	// be read again.
	KindReload Kind = "reload"
)

// Event is one entry of the session log stream.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Level   Level     `json:"level,omitempty"`
	State   State     `json:"state"`
	Message string    `json:"message,omitempty"`
}

// ReportFunc receives session events. It is called synchronously from
// the operation's goroutine and must not block for long.
type ReportFunc func(Event)

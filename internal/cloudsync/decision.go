package cloudsync

import (
	"context"
	"fmt"
)

// ConflictChoice is the user's answer when the remote document is newer
// than the local content. The zero value cancels.
type ConflictChoice int

const (
	ConflictCancel ConflictChoice = iota
	ConflictUseRemote
	ConflictUseLocal
)

// ConflictChoices lists every conflict answer in presentation order.
var ConflictChoices = []ConflictChoice{ConflictUseRemote, ConflictUseLocal, ConflictCancel}

func (c ConflictChoice) String() string {
	switch c {
	case ConflictUseRemote:
		return "use_remote"
	case ConflictUseLocal:
		return "use_local"
	default:
		return "cancel"
	}
}

// ParseConflictChoice parses the String form of a ConflictChoice.
func ParseConflictChoice(s string) (ConflictChoice, error) {
	for _, c := range ConflictChoices {
		if c.String() == s {
			return c, nil
		}
	}

	return ConflictCancel, fmt.Errorf("unknown conflict choice %q", s)
}

// RestoreChoice is the user's answer before a backup overwrites local
// content. The zero value cancels.
type RestoreChoice int

const (
	RestoreCancel RestoreChoice = iota
	RestoreBackupFirst
	RestoreDirect
)

// RestoreChoices lists every restore answer in presentation order.
var RestoreChoices = []RestoreChoice{RestoreBackupFirst, RestoreDirect, RestoreCancel}

func (c RestoreChoice) String() string {
	switch c {
	case RestoreBackupFirst:
		return "backup_then_restore"
	case RestoreDirect:
		return "direct_restore"
	default:
		return "cancel"
	}
}

// ParseRestoreChoice parses the String form of a RestoreChoice.
func ParseRestoreChoice(s string) (RestoreChoice, error) {
	for _, c := range RestoreChoices {
		if c.String() == s {
			return c, nil
		}
	}

	return RestoreCancel, fmt.Errorf("unknown restore choice %q", s)
}

// DeleteChoice is the user's answer before a backup is deleted. The zero
// value cancels.
type DeleteChoice int

const (
	DeleteCancel DeleteChoice = iota
	DeleteConfirm
)

// DeleteChoices lists every delete answer in presentation order.
var DeleteChoices = []DeleteChoice{DeleteConfirm, DeleteCancel}

func (c DeleteChoice) String() string {
	if c == DeleteConfirm {
		return "confirm"
	}

	return "cancel"
}

// ParseDeleteChoice parses the String form of a DeleteChoice.
func ParseDeleteChoice(s string) (DeleteChoice, error) {
	for _, c := range DeleteChoices {
		if c.String() == s {
			return c, nil
		}
	}

	return DeleteCancel, fmt.Errorf("unknown delete choice %q", s)
}

// Conflict describes both sides of a sync conflict.
type Conflict struct {
	LocalUpdatedAt  string  `json:"local_updated_at"`
	RemoteUpdatedAt string  `json:"remote_updated_at"`
	LocalDays       int     `json:"local_days"`
	RemoteDays      int     `json:"remote_days"`
	Preview         Preview `json:"preview"`
}

// RestoreRequest describes a validated snapshot about to replace the
// local content.
type RestoreRequest struct {
	Filename  string `json:"filename"`
	UpdatedAt string `json:"updated_at"`
	Days      int    `json:"days"`
	Months    int    `json:"months"`
}

// DeleteRequest names the snapshot about to be deleted.
type DeleteRequest struct {
	Filename string `json:"filename"`
}

// Decider resolves the three user decision points. Each call blocks
// until the user answers. An error means the UI went away, and the
// operation is treated as cancelled.
type Decider interface {
	ResolveConflict(ctx context.Context, c Conflict) (ConflictChoice, error)
	ConfirmRestore(ctx context.Context, r RestoreRequest) (RestoreChoice, error)
	ConfirmDelete(ctx context.Context, r DeleteRequest) (DeleteChoice, error)
}

// Preset is a Decider with fixed answers, for callers that collect
// decisions up front. The zero value cancels everything.
type Preset struct {
	Conflict ConflictChoice
	Restore  RestoreChoice
	Delete   DeleteChoice
}

func (p Preset) ResolveConflict(context.Context, Conflict) (ConflictChoice, error) {
	return p.Conflict, nil
}

func (p Preset) ConfirmRestore(context.Context, RestoreRequest) (RestoreChoice, error) {
	return p.Restore, nil
}

func (p Preset) ConfirmDelete(context.Context, DeleteRequest) (DeleteChoice, error) {
	return p.Delete, nil
}

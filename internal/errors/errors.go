package errors

import "errors"

// Remote document and snapshot errors.
var (
	// ErrNotFound marks an absent remote file or directory. Callers treat
	// it as a signal (first sync, empty backup list), not a failure.
	ErrNotFound = errors.New("not found")

	ErrFormat             = errors.New("invalid document format")
	ErrUnsupportedVersion = errors.New("unsupported document version")
	ErrWriteConflict      = errors.New("remote file already exists")
	ErrInvalidBackupName  = errors.New("invalid backup name")
)

// Connection and operation errors.
var (
	ErrConnection = errors.New("remote connection failed")
	ErrBusy       = errors.New("another sync operation is in progress")
)

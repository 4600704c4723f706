package models

import "time"

// RemoteEntry describes a file or directory in a remote store. Size and
// ModTime come from the store, never from the file content.
type RemoteEntry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	IsDir   bool      `json:"is_dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Backup is a named, write-once snapshot of a sync document.
type Backup struct {
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
	SizeBytes    int64     `json:"size_bytes"`
}

// RemoteSettings are the WebDAV connection settings saved by the user.
type RemoteSettings struct {
	ServerURL string `json:"serverUrl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	RootPath  string `json:"rootPath"`
}

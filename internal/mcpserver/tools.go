// Package mcpserver registers MCP tools that expose diary sync and
// backup operations. MCP calls cannot block on a person, so every
// decision an operation may need is passed up front as a tool argument.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/trustdev-org/calendar-diary/internal/cloudsync"
)

// RegisterTools adds all diary tools to the given MCP server.
func RegisterTools(server *mcp.Server, engine *cloudsync.Engine) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "diary_status",
		Description: "Show local sync bookkeeping: content timestamp, last sync and backup times, number of diary days and planned months. Does not contact the server.",
	}, statusHandler(engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diary_sync",
		Description: "Sync the local diary with the remote copy. Uploads when local is newer or the remote is empty. When the remote is newer, on_conflict decides: use_remote, use_local, or cancel (default).",
	}, syncHandler(engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diary_backup_create",
		Description: "Snapshot the current local diary to a new write-once remote backup.",
	}, createBackupHandler(engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diary_backup_list",
		Description: "List remote backups, newest first, with modification time and size.",
	}, listBackupsHandler(engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diary_backup_restore",
		Description: "Replace the local diary with a backup. strategy is backup_then_restore (snapshot current data first), direct_restore, or cancel.",
	}, restoreHandler(engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diary_backup_delete",
		Description: "Permanently delete a remote backup. Nothing is deleted unless confirm is true.",
	}, deleteHandler(engine))
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// StatusInput has no parameters.
type StatusInput struct{}

// SyncInput holds parameters for diary_sync.
type SyncInput struct {
	OnConflict string `json:"on_conflict,omitempty" jsonschema:"use_remote, use_local or cancel; defaults to cancel"`
}

// CreateBackupInput has no parameters.
type CreateBackupInput struct{}

// ListBackupsInput has no parameters.
type ListBackupsInput struct{}

// RestoreInput holds parameters for diary_backup_restore.
type RestoreInput struct {
	Filename string `json:"filename" jsonschema:"required,backup filename such as backup-20250131-235959.json"`
	Strategy string `json:"strategy" jsonschema:"required,backup_then_restore, direct_restore or cancel"`
}

// DeleteInput holds parameters for diary_backup_delete.
type DeleteInput struct {
	Filename string `json:"filename" jsonschema:"required,backup filename"`
	Confirm  bool   `json:"confirm,omitempty" jsonschema:"must be true to delete"`
}

// --- Output types ---

// StatusOutput is the result of diary_status.
type StatusOutput struct {
	State      string `json:"state"`
	UpdatedAt  string `json:"updated_at"`
	LastSync   string `json:"last_sync"`
	LastBackup string `json:"last_backup"`
	Days       int    `json:"days"`
	Months     int    `json:"months"`
}

// OperationOutput is the result of the sync, backup, restore and delete
// tools.
type OperationOutput struct {
	Outcome   string   `json:"outcome"`
	UpdatedAt string   `json:"updated_at,omitempty"`
	Backup    string   `json:"backup,omitempty"`
	Log       []string `json:"log"`
}

// BackupInfo describes one backup in diary_backup_list.
type BackupInfo struct {
	Filename     string `json:"filename"`
	LastModified string `json:"last_modified"`
	SizeBytes    int64  `json:"size_bytes"`
	Size         string `json:"size"`
}

// ListBackupsOutput is the result of diary_backup_list.
type ListBackupsOutput struct {
	Total   int          `json:"total"`
	Backups []BackupInfo `json:"backups"`
}

// --- Handlers ---

func statusHandler(engine *cloudsync.Engine) mcp.ToolHandlerFor[StatusInput, *StatusOutput] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, *StatusOutput, error) {
		st, err := engine.Status()
		if err != nil {
			return nil, nil, err
		}

		result := &StatusOutput{
			State:      st.State.String(),
			UpdatedAt:  st.UpdatedAt,
			LastSync:   formatTime(st.LastSync),
			LastBackup: formatTime(st.LastBackup),
			Days:       st.Days,
			Months:     st.Months,
		}
		return textResult(result), result, nil
	}
}

func syncHandler(engine *cloudsync.Engine) mcp.ToolHandlerFor[SyncInput, *OperationOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, *OperationOutput, error) {
		choice := cloudsync.ConflictCancel
		if input.OnConflict != "" {
			var err error
			if choice, err = cloudsync.ParseConflictChoice(input.OnConflict); err != nil {
				return nil, nil, err
			}
		}

		var log logLines
		res, err := engine.WithUI(cloudsync.Preset{Conflict: choice}, log.add).Sync(ctx)
		if err != nil {
			return nil, nil, err
		}

		result := operationOutput(res, &log)
		return textResult(result), result, nil
	}
}

func createBackupHandler(engine *cloudsync.Engine) mcp.ToolHandlerFor[CreateBackupInput, *OperationOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ CreateBackupInput) (*mcp.CallToolResult, *OperationOutput, error) {
		var log logLines
		res, err := engine.WithUI(nil, log.add).CreateBackup(ctx)
		if err != nil {
			return nil, nil, err
		}

		result := operationOutput(res, &log)
		return textResult(result), result, nil
	}
}

func listBackupsHandler(engine *cloudsync.Engine) mcp.ToolHandlerFor[ListBackupsInput, *ListBackupsOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListBackupsInput) (*mcp.CallToolResult, *ListBackupsOutput, error) {
		backups, err := engine.ListBackups(ctx)
		if err != nil {
			return nil, nil, err
		}

		result := &ListBackupsOutput{Total: len(backups), Backups: make([]BackupInfo, 0, len(backups))}
		for _, b := range backups {
			result.Backups = append(result.Backups, BackupInfo{
				Filename:     b.Filename,
				LastModified: formatTime(b.LastModified),
				SizeBytes:    b.SizeBytes,
				Size:         humanize.IBytes(uint64(b.SizeBytes)),
			})
		}
		return textResult(result), result, nil
	}
}

func restoreHandler(engine *cloudsync.Engine) mcp.ToolHandlerFor[RestoreInput, *OperationOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RestoreInput) (*mcp.CallToolResult, *OperationOutput, error) {
		choice, err := cloudsync.ParseRestoreChoice(input.Strategy)
		if err != nil {
			return nil, nil, err
		}

		var log logLines
		res, err := engine.WithUI(cloudsync.Preset{Restore: choice}, log.add).RestoreBackup(ctx, input.Filename)
		if err != nil {
			return nil, nil, err
		}

		result := operationOutput(res, &log)
		return textResult(result), result, nil
	}
}

func deleteHandler(engine *cloudsync.Engine) mcp.ToolHandlerFor[DeleteInput, *OperationOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInput) (*mcp.CallToolResult, *OperationOutput, error) {
		choice := cloudsync.DeleteCancel
		if input.Confirm {
			choice = cloudsync.DeleteConfirm
		}

		var log logLines
		res, err := engine.WithUI(cloudsync.Preset{Delete: choice}, log.add).DeleteBackup(ctx, input.Filename)
		if err != nil {
			return nil, nil, err
		}

		result := operationOutput(res, &log)
		return textResult(result), result, nil
	}
}

// logLines collects the human-readable session log of one call.
type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) add(ev cloudsync.Event) {
	if ev.Kind != cloudsync.KindLog {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("[%s] %s", ev.Level, ev.Message))
}

func operationOutput(res cloudsync.Result, log *logLines) *OperationOutput {
	log.mu.Lock()
	defer log.mu.Unlock()

	lines := log.lines
	if lines == nil {
		lines = []string{}
	}

	return &OperationOutput{
		Outcome:   res.Outcome.String(),
		UpdatedAt: res.UpdatedAt,
		Backup:    res.Backup,
		Log:       lines,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

package console

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys for menus and printed summaries.
const (
	msgUseRemote        = "use_remote"
	msgUseLocal         = "use_local"
	msgCancel           = "cancel"
	msgBackupFirst      = "backup_then_restore"
	msgRestoreDirect    = "restore_direct"
	msgDeleteConfirm    = "delete_confirm"
	msgChoose           = "choose"
	msgInvalidChoice    = "invalid_choice"
	msgConflictHeader   = "conflict_header"
	msgConflictLocal    = "conflict_local"
	msgConflictRemote   = "conflict_remote"
	msgIdentical        = "identical"
	msgPreviewSummary   = "preview_summary"
	msgPreviewDays      = "preview_days"
	msgPreviewMore      = "preview_more"
	msgRestoreHeader    = "restore_header"
	msgRestoreDetail    = "restore_detail"
	msgRestoreReplaces  = "restore_replaces"
	msgDeleteHeader     = "delete_header"
	msgStatusUpdated    = "status_updated"
	msgStatusLastSync   = "status_last_sync"
	msgStatusLastBackup = "status_last_backup"
	msgStatusDays       = "status_days"
	msgStatusMonths     = "status_months"
	msgNoBackups        = "no_backups"
	msgResultCancelled  = "result_cancelled"
	msgResultBackedUp   = "result_backed_up"
	msgResultDeleted    = "result_deleted"
	msgResultDone       = "result_done"
	msgNever            = "never"
)

var translations = map[string]struct{ en, zh string }{
	msgUseRemote:        {"Use the remote copy (replaces local data)", "使用远程数据（覆盖本地数据）"},
	msgUseLocal:         {"Keep local data (overwrites the remote copy)", "保留本地数据（覆盖远程数据）"},
	msgCancel:           {"Cancel", "取消"},
	msgBackupFirst:      {"Back up current data, then restore", "先备份当前数据，再恢复"},
	msgRestoreDirect:    {"Restore without a backup", "直接恢复，不备份"},
	msgDeleteConfirm:    {"Delete permanently", "永久删除"},
	msgChoose:           {"Choose [1-%d]: ", "请选择 [1-%d]："},
	msgInvalidChoice:    {"Please enter a number between 1 and %d.", "请输入 1 到 %d 之间的数字。"},
	msgConflictHeader:   {"The remote diary is newer than this device.", "远程日记比本设备的新。"},
	msgConflictLocal:    {"  local:  %s (%d days)", "  本地：%s（%d 天）"},
	msgConflictRemote:   {"  remote: %s (%d days)", "  远程：%s（%d 天）"},
	msgIdentical:        {"  contents are identical", "  内容相同"},
	msgPreviewSummary:   {"  using the remote copy changes %d days and %d months (+%d/-%d lines)", "  使用远程数据将改动 %d 天和 %d 个月（+%d/-%d 行）"},
	msgPreviewDays:      {"  changed days: %s%s", "  改动的日期：%s%s"},
	msgPreviewMore:      {" and %d more", " 等另外 %d 天"},
	msgRestoreHeader:    {"Restore %s?", "恢复 %s？"},
	msgRestoreDetail:    {"  saved %s, %d days, %d months of plans", "  保存于 %s，%d 天日记，%d 个月计划"},
	msgRestoreReplaces:  {"Local data will be replaced.", "本地数据将被替换。"},
	msgDeleteHeader:     {"Delete %s? This cannot be undone.", "删除 %s？此操作无法撤销。"},
	msgStatusUpdated:    {"Content updated: %s", "内容更新：%s"},
	msgStatusLastSync:   {"Last sync:       %s", "上次同步：%s"},
	msgStatusLastBackup: {"Last backup:     %s", "上次备份：%s"},
	msgStatusDays:       {"Diary days:      %d", "日记天数：%d"},
	msgStatusMonths:     {"Planned months:  %d", "计划月数：%d"},
	msgNoBackups:        {"No backups yet.", "还没有备份。"},
	msgResultCancelled:  {"Cancelled. Nothing was changed.", "已取消，未做任何更改。"},
	msgResultBackedUp:   {"Backup %s created.", "备份 %s 已创建。"},
	msgResultDeleted:    {"Backup %s deleted.", "备份 %s 已删除。"},
	msgResultDone:       {"Done: %s (content %s).", "完成：%s（内容 %s）。"},
	msgNever:            {"never", "从未"},
}

var messages = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	for key, tr := range translations {
		mustSet(b.SetString(language.English, key, tr.en))
		mustSet(b.SetString(language.SimplifiedChinese, key, tr.zh))
	}

	return b
}

func mustSet(err error) {
	if err != nil {
		panic("console: building message catalog: " + err.Error())
	}
}

func newPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

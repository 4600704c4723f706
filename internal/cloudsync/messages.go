package cloudsync

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys for the session log.
const (
	msgConnecting        = "connecting"
	msgConnected         = "connected"
	msgConnectFailed     = "connect_failed"
	msgSyncStarting      = "sync_starting"
	msgFirstSync         = "first_sync"
	msgFirstSyncDone     = "first_sync_done"
	msgLocalNewer        = "local_newer"
	msgUploadDone        = "upload_done"
	msgConflict          = "conflict"
	msgUsedRemote        = "used_remote"
	msgUsedLocal         = "used_local"
	msgSyncCancelled     = "sync_cancelled"
	msgUpToDate          = "up_to_date"
	msgSyncComplete      = "sync_complete"
	msgSyncFailed        = "sync_failed"
	msgBackupStarting    = "backup_starting"
	msgBackupCreated     = "backup_created"
	msgBackupFailed      = "backup_failed"
	msgLoadingBackups    = "loading_backups"
	msgBackupsLoaded     = "backups_loaded"
	msgLoadBackupsFailed = "load_backups_failed"
	msgRestoreCancelled  = "restore_cancelled"
	msgRestoreBackingUp  = "restore_backing_up"
	msgRestoreBackedUp   = "restore_backed_up"
	msgRestoreStarting   = "restore_starting"
	msgRestoreComplete   = "restore_complete"
	msgRestoreFailed     = "restore_failed"
	msgDeleteCancelled   = "delete_cancelled"
	msgDeleteStarting    = "delete_starting"
	msgDeleteComplete    = "delete_complete"
	msgDeleteFailed      = "delete_failed"
	msgReload            = "reload"
)

// SupportedLanguages lists the session log languages.
var SupportedLanguages = []language.Tag{language.English, language.SimplifiedChinese}

var (
	messages = buildCatalog()
	matcher  = language.NewMatcher(SupportedLanguages)
)

// MatchLanguage maps a BCP 47 string such as "zh", "zh-CN" or "en-GB"
// onto the closest supported language, English if none is close.
func MatchLanguage(s string) language.Tag {
	_, idx, _ := matcher.Match(language.Make(s))
	return SupportedLanguages[idx]
}

func newPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

type translation struct {
	en string
	zh string
}

var translations = map[string]translation{
	msgConnecting:        {"Connecting to remote storage...", "正在连接远程存储..."},
	msgConnected:         {"Connected", "连接成功"},
	msgConnectFailed:     {"Connection failed: %s", "连接失败：%s"},
	msgSyncStarting:      {"Starting sync...", "开始同步..."},
	msgFirstSync:         {"No remote data yet, uploading local data...", "远程暂无数据，正在上传本地数据..."},
	msgFirstSyncDone:     {"First sync complete", "首次同步完成"},
	msgLocalNewer:        {"Local data is newer, uploading...", "本地数据较新，正在上传..."},
	msgUploadDone:        {"Upload complete", "上传完成"},
	msgConflict:          {"Remote data is newer (remote %s, local %s)", "检测到远程数据较新（远程 %s，本地 %s）"},
	msgUsedRemote:        {"Local data replaced with remote data", "已使用远程数据覆盖本地"},
	msgUsedLocal:         {"Remote data replaced with local data", "已使用本地数据覆盖远程"},
	msgSyncCancelled:     {"Sync cancelled", "已取消同步"},
	msgUpToDate:          {"Already up to date", "数据已是最新"},
	msgSyncComplete:      {"Sync complete", "同步完成"},
	msgSyncFailed:        {"Sync failed: %s", "同步失败：%s"},
	msgBackupStarting:    {"Creating backup...", "正在创建备份..."},
	msgBackupCreated:     {"Backup created: %s", "备份已创建：%s"},
	msgBackupFailed:      {"Backup failed: %s", "备份失败：%s"},
	msgLoadingBackups:    {"Loading backups...", "正在加载备份列表..."},
	msgLoadBackupsFailed: {"Loading backups failed: %s", "加载备份列表失败：%s"},
	msgRestoreCancelled:  {"Restore cancelled", "已取消恢复"},
	msgRestoreBackingUp:  {"Backing up current data first...", "正在先备份当前数据..."},
	msgRestoreBackedUp:   {"Current data backed up: %s", "当前数据已备份：%s"},
	msgRestoreStarting:   {"Restoring %s...", "正在恢复 %s..."},
	msgRestoreComplete:   {"Restored %s", "已恢复 %s"},
	msgRestoreFailed:     {"Restore failed: %s", "恢复失败：%s"},
	msgDeleteCancelled:   {"Delete cancelled", "已取消删除"},
	msgDeleteStarting:    {"Deleting %s...", "正在删除 %s..."},
	msgDeleteComplete:    {"Deleted %s", "已删除 %s"},
	msgDeleteFailed:      {"Delete failed: %s", "删除失败：%s"},
	msgReload:            {"Local data changed, reloading", "本地数据已更新，正在重新加载"},
}

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	for key, tr := range translations {
		mustSet(b.SetString(language.English, key, tr.en))
		mustSet(b.SetString(language.SimplifiedChinese, key, tr.zh))
	}

	mustSet(b.Set(language.English, msgBackupsLoaded,
		plural.Selectf(1, "%d",
			"=0", "No backups found",
			"=1", "Found 1 backup",
			"other", "Found %d backups",
		)))
	mustSet(b.SetString(language.SimplifiedChinese, msgBackupsLoaded, "找到 %d 个备份"))

	return b
}

func mustSet(err error) {
	if err != nil {
		panic("cloudsync: building message catalog: " + err.Error())
	}
}

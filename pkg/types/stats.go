package types

// Stats 路由器统计快照
//
// 计数器只在进程内维护，不持久化，只有进程重启才会清零。
type Stats struct {
	TotalSent       int64 `json:"totalSent"`
	TotalReceived   int64 `json:"totalReceived"`
	TotalProcessed  int64 `json:"totalProcessed"`
	TotalErrors     int64 `json:"totalErrors"`
	ActiveModules   int   `json:"activeModules"`
	PendingMessages int   `json:"pendingMessages"`
}

// Package registry 实现模块注册表
//
// 注册表把模块 ID 映射到处理器，注册/注销后同步通知其他已注册模块。
// 单个模块的通知失败（包括 panic）会被隔离：既不影响其他模块收到通知，
// 也不会返回给注册调用方，只会记录日志。
package registry

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("core/registry")

// Entry 注册表条目快照
type Entry struct {
	ID      string
	Handler pkgif.ModuleHandler
}

// Registry 模块注册表
type Registry struct {
	mu      sync.RWMutex
	entries map[string]pkgif.ModuleHandler
}

// New 创建注册表
func New() *Registry {
	return &Registry{
		entries: make(map[string]pkgif.ModuleHandler),
	}
}

// ============================================================================
//                              注册 / 注销
// ============================================================================

// Register 插入或替换条目，然后通知其他模块
//
// 同 ID 重复注册会替换旧处理器（last-write-wins），replaced 为 true。
// 只有参数非法时返回错误。
func (r *Registry) Register(id string, handler pkgif.ModuleHandler) (replaced bool, err error) {
	if id == "" {
		return false, types.ErrEmptyModuleID
	}
	if handler == nil {
		return false, fmt.Errorf("%w: module %s", types.ErrNilHandler, id)
	}

	r.mu.Lock()
	_, replaced = r.entries[id]
	r.entries[id] = handler
	peers := r.snapshotLocked(id)
	r.mu.Unlock()

	notifyErr := notifyAll(peers, func(h pkgif.ModuleHandler) {
		h.OnModuleRegistered(id)
	})
	if notifyErr != nil {
		logger.Warn("模块注册通知部分失败",
			"module", id,
			"failures", len(multierr.Errors(notifyErr)),
			"error", notifyErr)
	}

	logger.Debug("模块已注册", "module", id, "replaced", replaced, "peers", len(peers))
	return replaced, nil
}

// Unregister 移除条目并通知剩余模块，不存在时为空操作
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	if _, ok := r.entries[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, id)
	peers := r.snapshotLocked("")
	r.mu.Unlock()

	notifyErr := notifyAll(peers, func(h pkgif.ModuleHandler) {
		h.OnModuleUnregistered(id)
	})
	if notifyErr != nil {
		logger.Warn("模块注销通知部分失败",
			"module", id,
			"failures", len(multierr.Errors(notifyErr)),
			"error", notifyErr)
	}

	logger.Debug("模块已注销", "module", id, "peers", len(peers))
	return true
}

// ============================================================================
//                              查询
// ============================================================================

// Get 获取处理器
func (r *Registry) Get(id string) (pkgif.ModuleHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.entries[id]
	return h, ok
}

// Len 已注册模块数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs 返回排序后的模块 ID
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Peers 返回除 exclude 之外的条目快照
func (r *Registry) Peers(exclude string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(exclude)
}

// ============================================================================
//                              内部方法
// ============================================================================

func (r *Registry) snapshotLocked(exclude string) []Entry {
	out := make([]Entry, 0, len(r.entries))
	for id, h := range r.entries {
		if id == exclude {
			continue
		}
		out = append(out, Entry{ID: id, Handler: h})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// notifyAll 逐个通知，panic 被转换为错误并聚合
func notifyAll(peers []Entry, fn func(pkgif.ModuleHandler)) error {
	var errs error
	for _, p := range peers {
		errs = multierr.Append(errs, notifyOne(p, fn))
	}
	return errs
}

func notifyOne(p Entry, fn func(pkgif.ModuleHandler)) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: module %s: %v", types.ErrHandlerPanic, p.ID, rec)
		}
	}()
	fn(p.Handler)
	return nil
}

// Package registry 维护“已知系列名”缓存。
//
// 已知系列名来自参考目录的一级子目录名（剥掉系列前缀）。同一参考目录
// 在生命周期内至多扫描一次；Override 可整体替换来源并强制重扫。
// 所有方法并发安全。
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type Registry struct {
	mu        sync.Mutex
	known     map[string]struct{}
	processed map[string]struct{}
	runtime   []string
	prefixes  []string
	log       *zap.SugaredLogger
}

// New 构造空注册表。prefixes 是识别系列文件夹用的前缀集合，log 可为 nil。
func New(prefixes []string, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		known:     make(map[string]struct{}),
		processed: make(map[string]struct{}),
		prefixes:  append([]string(nil), prefixes...),
		log:       log,
	}
}

// stripPrefix 剥掉第一个命中的系列前缀并修剪首尾空白。
func (r *Registry) stripPrefix(name string) string {
	for _, p := range r.prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			name = name[len(p):]
			break
		}
	}
	return strings.TrimSpace(name)
}

// Contains 判断系列名（可带前缀）是否命中已知系列。
func (r *Registry) Contains(name string) bool {
	if name == "" {
		return false
	}
	base := r.stripPrefix(name)
	if base == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.known[base]
	return ok
}

// LoadFromDirs 扫描每个参考目录的一级子目录并合并进已知系列集。
// 不可读的目录标记为已处理后跳过，扫描错误不向上传播。
func (r *Registry) LoadFromDirs(dirs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked(dirs)
}

func (r *Registry) loadLocked(dirs []string) {
	for _, root := range dirs {
		if strings.TrimSpace(root) == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		abs = filepath.Clean(abs)
		if _, done := r.processed[abs]; done {
			continue
		}
		r.processed[abs] = struct{}{}

		entries, err := os.ReadDir(abs)
		if err != nil {
			r.log.Debugf("跳过无法读取的参考目录：%s：%v", abs, err)
			continue
		}
		added := 0
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if base := r.stripPrefix(e.Name()); base != "" {
				if _, dup := r.known[base]; !dup {
					r.known[base] = struct{}{}
					added++
				}
			}
		}
		r.log.Debugf("参考目录 %s：新增 %d 个已知系列", abs, added)
	}
}

// Override 用运行时目录整体替换来源：清空缓存并强制重扫。
// 传入空列表等价于只清空。
func (r *Registry) Override(dirs []string) {
	cleaned := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if strings.TrimSpace(d) != "" {
			cleaned = append(cleaned, d)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime = cleaned
	r.known = make(map[string]struct{})
	r.processed = make(map[string]struct{})
	if len(cleaned) > 0 {
		r.loadLocked(cleaned)
	}
}

// Reset 清空缓存与运行时覆盖，恢复到未加载状态。
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime = nil
	r.known = make(map[string]struct{})
	r.processed = make(map[string]struct{})
}

// RuntimeDirs 返回运行时覆盖目录的副本；为空表示沿用配置来源。
func (r *Registry) RuntimeDirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runtime...)
}

// Snapshot 返回已知系列名的有序副本。
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.known))
	for k := range r.known {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

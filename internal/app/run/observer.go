package run

import (
	"time"

	"github.com/John-Robertt/seriex/internal/config"
	"github.com/John-Robertt/seriex/internal/domain"
)

// Observer 把"运行进度/阶段/目录结果"从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的文档契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在一次处理开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（rename/scan/plan/exec）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnDirDone 在某个目录执行完成时调用（用于每目录一行输出）。
	OnDirDone(idx, total int, dir string, res domain.DirResult, dur time.Duration)
	// OnProgress 用于 keepalive（通常由 CLI 自己 ticker 触发；run 层不强制调用）。
	OnProgress(done, total, moved, failed, active int, activeDirs []string, elapsed time.Duration)
}

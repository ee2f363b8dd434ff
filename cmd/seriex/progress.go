package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/John-Robertt/seriex/internal/app/run"
	"github.com/John-Robertt/seriex/internal/config"
	"github.com/John-Robertt/seriex/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个简洁的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或退回 stdout），不污染 stdout 的文档输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：长时间无目录完成时也会定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	moved   int
	failed  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] seriex run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  formats: %s\n", formatStringListJSON(eff.Formats))
	fmt.Fprintf(p.w, "  prefix: %s\n", formatPrefix(eff))
	fmt.Fprintf(p.w, "  known_series_dirs: %s (allow_single=%s)\n",
		formatStringListJSON(eff.KnownSeriesDirs), onOff(eff.AllowSingle))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// apply 单独运行时没有 OnStart；起点在第一个事件处补齐。
	if p.startedAt.IsZero() {
		p.startedAt = time.Now()
	}

	switch name {
	case "rename":
		fmt.Fprintf(p.w, "改名: renamed=%d (%s)\n",
			intField(fields, "renamed"), formatShortDuration(dur),
		)
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d skipped=%d (%s)\n",
			intField(fields, "files"), intField(fields, "skipped"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: dirs=%d moves=%d unplanned=%d (%s)\n",
			intField(fields, "dirs"),
			intField(fields, "moves"),
			intField(fields, "unplanned"),
			formatShortDuration(dur),
		)
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_dirs")
		fmt.Fprintf(p.w, "执行: workers=%d total_dirs=%d moves=%d\n\n",
			p.workers, p.total, intField(fields, "moves"),
		)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnDirDone(idx, total int, dir string, res domain.DirResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total
	p.moved += res.MovedCount()
	p.failed += len(res.Failures)

	status := "OK"
	switch res.Status {
	case domain.DirStatusPartial:
		status = "PART"
	case domain.DirStatusFailed:
		status = "FAIL"
	}

	switch res.Status {
	case domain.DirStatusApplied:
		fmt.Fprintf(p.w, "[%d/%d] %s %s folders=%d moved=%d (%s)\n",
			idx, total, filepath.Base(dir), status,
			len(res.Folders), res.MovedCount(), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s moved=%d failed=%d: %s (%s)\n",
			idx, total, filepath.Base(dir), status,
			res.MovedCount(), len(res.Failures),
			truncate(firstFailure(res), 160), formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, moved, failed, active int, activeDirs []string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "进度: done=%d/%d moved=%d failed=%d active=%d elapsed=%s\n",
		done, total, moved, failed, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				// 已完成：安全退出（OnDirDone 会 close stopCh，但这里也做兜底）。
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}

				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					active := p.workers
					remain := p.total - p.done
					if remain < active {
						active = remain
					}
					elapsed := time.Since(p.startedAt)
					fmt.Fprintf(p.w, "进度: done=%d/%d moved=%d failed=%d active=%d elapsed=%s\n",
						p.done, p.total, p.moved, p.failed, active, formatElapsed(elapsed),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-p.stopCh:
				return
			}
		}
	}()
}

func firstFailure(res domain.DirResult) string {
	if len(res.Failures) == 0 {
		return ""
	}
	f := res.Failures[0]
	if f.ErrorMsg == "" {
		return f.ErrorCode
	}
	return f.ErrorCode + ": " + f.ErrorMsg
}

func formatPrefix(eff config.EffectiveConfig) string {
	if !eff.AddPrefix {
		return "off"
	}
	return eff.Prefix
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// truncate 按 rune 截断，避免在多字节字符中间切开产生乱码。
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}

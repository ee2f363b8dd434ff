// Package run 编排一次完整的整理流程：旧文件夹改名、扫描、分组规划、
// 执行搬移，并组装对外稳定的运行报告。
//
// 错误按层级降级：单文件搬移失败只记录并跳过，参考目录不可读只记日志；
// 只有操作对象本身不是可用目录才让整个操作失败。
package run

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/seriex/internal/app/planner"
	"github.com/John-Robertt/seriex/internal/config"
	"github.com/John-Robertt/seriex/internal/domain"
	"github.com/John-Robertt/seriex/internal/infra/fsx"
	"github.com/John-Robertt/seriex/internal/scan"
	"github.com/John-Robertt/seriex/internal/series"
	"github.com/John-Robertt/seriex/internal/similarity"
)

// Env 汇总一次运行需要的依赖：配置、分组引擎、打分器、日志与可选的观察者。
type Env struct {
	Cfg    config.EffectiveConfig
	Engine *series.Engine
	Scorer *similarity.Scorer
	Log    *zap.SugaredLogger
	Obs    Observer
}

// NewEnv 从最终配置组装运行环境；log 可为 nil。
func NewEnv(cfg config.EffectiveConfig, log *zap.SugaredLogger) *Env {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	eng := series.New(series.Options{
		Prefixes:    cfg.Prefixes,
		KnownDirs:   cfg.KnownSeriesDirs,
		AllowSingle: cfg.AllowSingle,
	}, nil, log)
	return &Env{
		Cfg:    cfg,
		Engine: eng,
		Scorer: similarity.NewScorer(cfg.Similarity, log),
		Log:    log,
	}
}

// BadDirectoryError 表示操作对象不是一个可用目录。
// 这是唯一让整个操作直接失败的参数错误（error_code=bad_directory）。
type BadDirectoryError struct {
	Path string
	Err  error
}

func (e *BadDirectoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("无效目录：%q：%v", e.Path, e.Err)
	}
	return fmt.Sprintf("无效目录：%q", e.Path)
}

func (e *BadDirectoryError) Unwrap() error { return e.Err }

func validateDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &BadDirectoryError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return &BadDirectoryError{Path: path}
	}
	return nil
}

// Prepare 扫描 dir 并计算迁移计划。除注册表的参考目录懒加载外没有
// 副作用，可反复调用用于预览。第二个返回值是未进入计划的文件。
func (env *Env) Prepare(dir string) (domain.RelocationPlan, []string, error) {
	if err := validateDir(dir); err != nil {
		return domain.RelocationPlan{}, nil, err
	}

	scanStarted := time.Now()
	ls, err := scan.Collect(dir, env.Cfg.Formats)
	if err != nil {
		return domain.RelocationPlan{}, nil, err
	}
	for _, se := range ls.Errors {
		env.Log.Warnf("扫描跳过：%v", se)
	}
	if env.Obs != nil {
		env.Obs.OnPhaseDone("scan", map[string]any{
			"files":   len(ls.Files),
			"skipped": len(ls.Errors),
		}, time.Since(scanStarted))
	}

	planStarted := time.Now()
	plan, unplanned := planner.ComputePlan(dir, ls.Files, ls.Siblings, env.Engine, planner.Options{
		CreationPrefix: env.Cfg.CreationPrefix(),
		AllowSingle:    env.Cfg.AllowSingle,
		KnownContains:  env.Engine.Registry().Contains,
		DetectPrefixes: env.Cfg.Prefixes,
	})
	if env.Obs != nil {
		env.Obs.OnPhaseDone("plan", map[string]any{
			"dirs":      len(plan.Dirs),
			"moves":     plan.FileCount(),
			"unplanned": len(unplanned),
		}, time.Since(planStarted))
	}
	return plan, unplanned, nil
}

// Apply 执行一份计划并返回已 Finalize 的报告。
// 目录之间按配置并发（目录是天然的隔离边界），目录内部串行。
func (env *Env) Apply(plan domain.RelocationPlan) domain.RunReport {
	rep := domain.RunReport{
		Root:      plan.Root,
		StartedAt: time.Now().UTC(),
	}

	workers := env.Cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	total := len(plan.Dirs)

	if env.Obs != nil {
		env.Obs.OnPhaseDone("exec", map[string]any{
			"workers":    workers,
			"total_dirs": total,
			"moves":      plan.FileCount(),
		}, 0)
	}

	type execResult struct {
		res domain.DirResult
		dur time.Duration
	}

	jobs := make(chan domain.DirPlan)
	results := make(chan execResult, total)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dp := range jobs {
				oneStarted := time.Now()
				res := env.applyDir(dp)
				results <- execResult{res: res, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, dp := range plan.Dirs {
			jobs <- dp
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		done++
		rep.Dirs = append(rep.Dirs, r.res)
		if env.Obs != nil {
			env.Obs.OnDirDone(done, total, r.res.Dir, r.res, r.dur)
		}
	}

	rep.FinishedAt = time.Now().UTC()
	rep.Finalize()
	return rep
}

// applyDir 执行单个目录的计划：建文件夹、逐文件搬移。
// 单文件失败记入 Failures 后继续；文件夹级冲突让该文件夹全部文件失败。
func (env *Env) applyDir(dp domain.DirPlan) domain.DirResult {
	res := domain.DirResult{Dir: dp.Dir}
	existing := readSubdirs(dp.Dir)

	for _, fp := range dp.Folders {
		target := filepath.Join(dp.Dir, fp.Folder)

		// 目标文件夹尚不存在时，提示与既有文件夹的近似（不改变计划）。
		if !containsName(existing, fp.Folder) {
			name := fp.Folder
			if stripped, ok := series.StripPrefix(name, env.Cfg.Prefixes); ok {
				name = stripped
			}
			if env.Engine.SimilarToExisting(existing, name, env.Scorer) {
				env.Log.Warnf("目录 %q 下已有与 '%s' 近似的文件夹，请留意重复系列", dp.Dir, name)
			}
		}

		if err := fsx.EnsureDir(target); err != nil {
			code := domain.ErrCodeIOFailed
			if fsx.IsPathTypeConflict(err) {
				code = domain.ErrCodeTargetConflict
			}
			env.Log.Errorf("创建系列文件夹失败：%v", err)
			for _, src := range fp.Files {
				res.Failures = append(res.Failures, domain.MoveFailure{
					Src: src, ErrorCode: code, ErrorMsg: err.Error(),
				})
			}
			continue
		}

		fr := domain.FolderResult{Folder: fp.Folder}
		for _, src := range fp.Files {
			if _, err := os.Lstat(src); err != nil {
				if os.IsNotExist(err) {
					// 计划与执行之间文件可能被外部挪走：跳过即可。
					env.Log.Warnf("源文件已不存在，跳过：%q", src)
					res.Failures = append(res.Failures, domain.MoveFailure{
						Src: src, ErrorCode: domain.ErrCodeSourceMissing, ErrorMsg: "源文件已不存在",
					})
					continue
				}
				res.Failures = append(res.Failures, domain.MoveFailure{
					Src: src, ErrorCode: domain.ErrCodeIOFailed, ErrorMsg: err.Error(),
				})
				continue
			}

			final, err := fsx.SafeMove(src, filepath.Join(target, filepath.Base(src)))
			if err != nil {
				env.Log.Errorf("移动失败，跳过该文件：%v", err)
				res.Failures = append(res.Failures, domain.MoveFailure{
					Src: src, ErrorCode: domain.ErrCodeMoveFailed, ErrorMsg: err.Error(),
				})
				continue
			}

			moved := filepath.Base(final)
			if moved != filepath.Base(src) {
				env.Log.Infof("目标重名，改存为 '%s'", moved)
			}
			fr.Moved = append(fr.Moved, moved)
			env.Log.Infof("已移动 '%s' 到 '%s'", filepath.Base(src), fp.Folder)
		}
		res.Folders = append(res.Folders, fr)
	}

	res.Status = dirStatus(res)
	return res
}

func dirStatus(res domain.DirResult) string {
	switch {
	case len(res.Failures) == 0:
		return domain.DirStatusApplied
	case res.MovedCount() > 0:
		return domain.DirStatusPartial
	default:
		return domain.DirStatusFailed
	}
}

// Process 是 prepare + apply 的便捷组合：启用前缀时先做旧文件夹改名，
// 再扫描、规划并执行，最后产出带未归组文件与改名记录的完整报告。
func (env *Env) Process(dir string) (domain.RunReport, error) {
	started := time.Now().UTC()
	if env.Obs != nil {
		env.Obs.OnStart(env.Cfg)
	}
	if err := validateDir(dir); err != nil {
		return domain.RunReport{}, err
	}

	var renamed []domain.RenameResult
	if env.Cfg.AddPrefix {
		renameStarted := time.Now()
		renamed = env.RenameLegacyFolders(dir)
		if env.Obs != nil {
			env.Obs.OnPhaseDone("rename", map[string]any{
				"renamed": len(renamed),
			}, time.Since(renameStarted))
		}
	}

	plan, unplanned, err := env.Prepare(dir)
	if err != nil {
		return domain.RunReport{}, err
	}

	rep := env.Apply(plan)
	rep.Root = dir
	rep.StartedAt = started
	rep.Unclassified = relativize(dir, unplanned)
	rep.RenamedFolders = renamed
	rep.Finalize()
	return rep, nil
}

// RenameLegacyFolders 把带系列标记的旧文件夹名规范化为引擎当前会算出
// 的系列键。先收集后改名，避免遍历一棵正在变化的树；深层的先改，
// 父目录改名才不会让子路径失效。
func (env *Env) RenameLegacyFolders(root string) []domain.RenameResult {
	type legacyDir struct {
		path string
		name string
	}
	var found []legacyDir

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			env.Log.Debugf("跳过不可读路径：%q：%v", path, err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if d.Name() == scan.ReservedCorrupted {
			return filepath.SkipDir
		}
		if _, ok := series.StripPrefix(d.Name(), env.Cfg.Prefixes); ok {
			found = append(found, legacyDir{path: path, name: d.Name()})
		}
		return nil
	})

	sep := string(filepath.Separator)
	sort.SliceStable(found, func(i, j int) bool {
		return strings.Count(found[i].path, sep) > strings.Count(found[j].path, sep)
	})

	var out []domain.RenameResult
	for _, lf := range found {
		stripped, _ := series.StripPrefix(lf.name, env.Cfg.Prefixes)
		key := env.Engine.SeriesKey(stripped, nil)
		if key == "" {
			continue
		}
		newName := env.Cfg.CreationPrefix() + key
		if newName == lf.name {
			continue
		}

		target := filepath.Join(filepath.Dir(lf.path), newName)
		if _, err := os.Lstat(target); err == nil {
			env.Log.Warnf("目标已存在，跳过改名：'%s' -> '%s'", lf.name, newName)
			continue
		}
		if err := fsx.Rename(lf.path, target); err != nil {
			env.Log.Errorf("文件夹改名失败：%v", err)
			continue
		}
		env.Log.Infof("文件夹改名：'%s' -> '%s'", lf.name, newName)
		out = append(out, domain.RenameResult{From: lf.name, To: newName})
	}
	return out
}

// MoveCorrupted 把无法处理的文件挪进收容目录，保持相对 base 的目录
// 层级。返回实际落点（收容目录内同名时加后缀）。
func (env *Env) MoveCorrupted(file, base string) (string, error) {
	rel, err := filepath.Rel(base, filepath.Dir(file))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		rel = ""
	}

	target := filepath.Join(base, scan.ReservedCorrupted, rel, filepath.Base(file))
	final, err := fsx.SafeMove(file, target)
	if err != nil {
		return "", err
	}
	env.Log.Infof("已收容损坏件：'%s' -> '%s'", file, final)
	return final, nil
}

// readSubdirs 列出 dir 下的一级子文件夹名；不可读时近似提示直接跳过。
func readSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func relativize(root string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(root, p); err == nil {
			out = append(out, rel)
		} else {
			out = append(out, p)
		}
	}
	return out
}

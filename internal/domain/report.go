package domain

import (
	"sort"
	"time"
)

const (
	DirStatusApplied = "applied"
	DirStatusPartial = "partial"
	DirStatusFailed  = "failed"
)

const (
	ErrCodeMoveFailed        = "move_failed"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeTargetConflict    = "target_conflict"
	ErrCodeSourceMissing     = "source_missing"
	ErrCodeBadDirectory      = "bad_directory"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（report 文件 / stdout 文档）的结构。
type RunReport struct {
	Root string `yaml:"root" json:"root"`

	StartedAt  time.Time `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time `yaml:"finished_at" json:"finished_at"`

	Summary ReportSummary `yaml:"summary" json:"summary"`
	Dirs    []DirResult   `yaml:"dirs" json:"dirs"`

	// Unclassified 是分组后仍未归入任何系列的文件（相对 Root 的路径）。
	Unclassified []string `yaml:"unclassified,omitempty" json:"unclassified,omitempty"`

	// RenamedFolders 记录执行前规范化的旧系列文件夹名。
	RenamedFolders []RenameResult `yaml:"renamed_folders,omitempty" json:"renamed_folders,omitempty"`
}

type ReportSummary struct {
	Planned        int `yaml:"planned" json:"planned"`
	Moved          int `yaml:"moved" json:"moved"`
	Failed         int `yaml:"failed" json:"failed"`
	Unclassified   int `yaml:"unclassified" json:"unclassified"`
	RenamedFolders int `yaml:"renamed_folders" json:"renamed_folders"`
}

// DirResult 是单个目录的执行结果。Folders 保持计划顺序，Failures 按源路径排序。
type DirResult struct {
	Dir      string         `yaml:"dir" json:"dir"`
	Status   string         `yaml:"status" json:"status"`
	Folders  []FolderResult `yaml:"folders" json:"folders"`
	Failures []MoveFailure  `yaml:"failures,omitempty" json:"failures,omitempty"`
}

// FolderResult 记录实际落进某个系列文件夹的文件名（重命名后的最终名）。
type FolderResult struct {
	Folder string   `yaml:"folder" json:"folder"`
	Moved  []string `yaml:"moved" json:"moved"`
}

// MoveFailure 是一次被跳过的搬移：执行层容忍单文件失败，继续处理其余文件。
type MoveFailure struct {
	Src       string `yaml:"src" json:"src"`
	ErrorCode string `yaml:"error_code" json:"error_code"`
	ErrorMsg  string `yaml:"error_msg" json:"error_msg"`
}

// RenameResult 记录一次旧系列文件夹的改名。
type RenameResult struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// MovedCount 统计该目录实际移动的文件数。
func (d DirResult) MovedCount() int {
	n := 0
	for _, f := range d.Folders {
		n += len(f.Moved)
	}
	return n
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保序列化为 RFC3339 且后缀 Z）
// 2) dirs 按路径字典序稳定排序，failures 按 src 排序
// 3) summary 由 dirs 与附加字段计算得出
//
// 幂等：追加字段后可以再次调用。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Dirs, func(i, j int) bool {
		return r.Dirs[i].Dir < r.Dirs[j].Dir
	})
	for i := range r.Dirs {
		fs := r.Dirs[i].Failures
		sort.SliceStable(fs, func(a, b int) bool {
			return fs[a].Src < fs[b].Src
		})
	}

	var s ReportSummary
	for _, d := range r.Dirs {
		moved := d.MovedCount()
		s.Moved += moved
		s.Failed += len(d.Failures)
		s.Planned += moved + len(d.Failures)
	}
	s.Unclassified = len(r.Unclassified)
	s.RenamedFolders = len(r.RenamedFolders)
	r.Summary = s
}

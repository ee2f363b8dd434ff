// Package planner 把分组结果整理成可检查的迁移计划。
//
// 计划计算是纯函数：除分组引擎自身的参考目录懒加载外不做任何 I/O，
// 目录下既有子文件夹的名字由调用方（扫描层）显式传入，可以反复调用
// 用于预览。
package planner

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/seriex/internal/domain"
)

// Grouper 是规划层对分组引擎的最小依赖。
type Grouper interface {
	// FindGroups 对一个目录内的文件做完整分组；返回值覆盖全部输入，
	// 未归组的文件集中在兜底组（domain.Unclassified）。
	FindGroups(paths []string, siblings []string) []domain.SeriesGroup
}

// Options 控制计划生成规则。
type Options struct {
	// CreationPrefix 是创建系列文件夹时的前缀，空串表示不加标记。
	CreationPrefix string
	// AllowSingle 允许命中已知系列的单文件也建文件夹。
	AllowSingle bool
	// KnownContains 判断系列名是否在已知系列注册表中；nil 视为都不在。
	KnownContains func(name string) bool
	// DetectPrefixes 是识别系列文件夹的前缀集合；已位于这类文件夹内的
	// 文件不再参与规划（不在已整理好的文件夹里再套一层）。
	DetectPrefixes []string
}

// ComputePlan 为 root 下收集到的候选文件生成迁移计划。
//
// files 按目录切分后逐目录送入分组引擎（已带系列前缀的目录和单文件
// 目录都没有可分组的对象，直接落入 unplanned）。unplanned 汇总所有
// 没有进入计划的输入文件：已标记文件夹内的、兜底组成员、被单文件
// 规则拒绝的、单文件目录里的、以及整目录被抑制的。计划内文件与
// unplanned 合起来恰好等于输入集合。
func ComputePlan(root string, files []domain.CandidateFile, siblings map[string][]string, g Grouper, opts Options) (domain.RelocationPlan, []string) {
	plan := domain.RelocationPlan{Root: root}
	var unplanned []string

	byDir := make(map[string][]domain.CandidateFile, 8)
	dirs := make([]string, 0, 8)
	for _, f := range files {
		if _, ok := byDir[f.Dir]; !ok {
			dirs = append(dirs, f.Dir)
		}
		byDir[f.Dir] = append(byDir[f.Dir], f)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		cands := byDir[dir]
		if insideTagged(dir, opts.DetectPrefixes) {
			for _, f := range cands {
				unplanned = append(unplanned, f.AbsPath)
			}
			continue
		}
		if len(cands) < 2 {
			for _, f := range cands {
				unplanned = append(unplanned, f.AbsPath)
			}
			continue
		}

		paths := make([]string, 0, len(cands))
		for _, f := range cands {
			paths = append(paths, f.AbsPath)
		}

		folders, rest := planDir(paths, g.FindGroups(paths, siblings[dir]), opts)
		unplanned = append(unplanned, rest...)
		if len(folders) == 0 {
			continue
		}
		plan.Dirs = append(plan.Dirs, domain.DirPlan{Dir: dir, Folders: folders})
	}

	return plan, unplanned
}

// planDir 把一个目录的分组结果整理成文件夹计划。
// 第二个返回值是该目录内未进入计划的文件。
func planDir(input []string, groups []domain.SeriesGroup, opts Options) ([]domain.FolderPlan, []string) {
	var (
		folders []domain.FolderPlan
		rest    []string
		planned int
	)
	idx := make(map[string]int, len(groups))

	for _, grp := range groups {
		if grp.Name == domain.Unclassified {
			rest = append(rest, grp.Files...)
			continue
		}
		if len(grp.Files) == 1 && !singletonAllowed(grp.Name, opts) {
			rest = append(rest, grp.Files...)
			continue
		}

		name := opts.CreationPrefix + strings.TrimSpace(grp.Name)
		if i, ok := idx[name]; ok {
			folders[i].Files = append(folders[i].Files, grp.Files...)
		} else {
			idx[name] = len(folders)
			folders = append(folders, domain.FolderPlan{
				Folder: name,
				Files:  append([]string(nil), grp.Files...),
			})
		}
		planned += len(grp.Files)
	}

	// 一个系列覆盖目录全部文件时整个目录按兵不动，已知系列命中也一样。
	if len(folders) == 1 && planned == len(input) {
		return nil, input
	}
	return folders, rest
}

func singletonAllowed(name string, opts Options) bool {
	return opts.AllowSingle && opts.KnownContains != nil && opts.KnownContains(name)
}

// insideTagged 判断目录本身是否已带系列前缀。
func insideTagged(dir string, prefixes []string) bool {
	base := filepath.Base(dir)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(base, p) {
			return true
		}
	}
	return false
}

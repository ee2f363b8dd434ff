// Package scan 负责收集参与系列提取的候选文件。
//
// 收集契约：
// - 只深入根目录下一层：更深层级不参与
// - 跳过已带系列标记的目录与损坏件收容目录
// - 扩展名必须命中格式集合（小写、含点）
// - 命中提取黑名单的文件跳过
// 输出确定性排序（按绝对路径字典序），目录不可读记为可跳过的扫描错误。
//
// 注意：扫描阶段只看目录项，不读文件内容。
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/John-Robertt/seriex/internal/domain"
)

// ReservedCorrupted 是损坏件收容目录名，扫描与分组都跳过它。
const ReservedCorrupted = "损坏压缩包"

// skipDirPrefix 与收容目录一并在扫描时跳过（字面量，与配置的创建前缀无关）。
const skipDirPrefix = "[#s]"

// 系列提取黑名单：命中任一模式的文件不参与分组。
var blacklistREs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)画集`),
	regexp.MustCompile(`(?i)fanbox`),
	regexp.MustCompile(`(?i)pixiv`),
	regexp.MustCompile(`(?i)・`),
	regexp.MustCompile(`(?i)杂图合集`),
	regexp.MustCompile(`(?i)01视频`),
	regexp.MustCompile(`(?i)02动图`),
	regexp.MustCompile(`(?i)作品集`),
	regexp.MustCompile(`(?i)损坏压缩包`),
}

// IsBlacklisted 判断文件名是否命中系列提取黑名单。
func IsBlacklisted(name string) bool {
	for _, re := range blacklistREs {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// ScanError 描述一次可跳过的扫描失败（子目录不可读等）。
type ScanError struct {
	Dir string
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("扫描目录失败：%q：%v", e.Dir, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Listing 是一次扫描的完整产物：候选文件、每个目录的一级子文件夹名，
// 以及被跳过的扫描错误。Siblings 包含被跳过的标记目录，分组阶段要把
// 它们当作已存在的系列证据。
type Listing struct {
	Files    []domain.CandidateFile
	Siblings map[string][]string
	Errors   []*ScanError
}

// Collect 扫描 root 并按收集契约产出 Listing。
// root 必须是已存在的目录；这是唯一直接失败的情况。
func Collect(root string, formats []string) (Listing, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return Listing{}, &ScanError{Dir: root, Err: err}
	}
	if !info.IsDir() {
		return Listing{}, &ScanError{Dir: root, Err: fmt.Errorf("不是目录")}
	}

	extSet := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		extSet[strings.ToLower(f)] = struct{}{}
	}

	ls := Listing{Siblings: make(map[string][]string)}
	sep := string(filepath.Separator)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			ls.Errors = append(ls.Errors, &ScanError{Dir: path, Err: err})
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		depth := strings.Count(rel, sep)

		if d.IsDir() {
			// 子文件夹名总是先记入 Siblings，再决定是否深入。
			parent := filepath.Dir(path)
			ls.Siblings[parent] = append(ls.Siblings[parent], d.Name())

			if strings.HasPrefix(d.Name(), skipDirPrefix) || d.Name() == ReservedCorrupted {
				return filepath.SkipDir
			}
			if depth >= 1 {
				return filepath.SkipDir
			}
			return nil
		}

		if depth > 1 {
			return nil
		}
		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := extSet[ext]; !ok {
			return nil
		}
		if IsBlacklisted(name) {
			return nil
		}
		ls.Files = append(ls.Files, domain.CandidateFile{
			AbsPath: path,
			Dir:     filepath.Dir(path),
			Name:    name,
			Stem:    strings.TrimSuffix(name, filepath.Ext(name)),
			Ext:     ext,
		})
		return nil
	})
	if walkErr != nil {
		return ls, &ScanError{Dir: root, Err: walkErr}
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(ls.Files, func(i, j int) bool { return ls.Files[i].AbsPath < ls.Files[j].AbsPath })
	for _, names := range ls.Siblings {
		sort.Strings(names)
	}
	return ls, nil
}

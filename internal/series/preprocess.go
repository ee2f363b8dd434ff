// Package series 实现系列分组引擎：按优先级递减的五个阶段，把同目录下
// 属于同一系列的文件聚成命名分组，并导出配套的名字归一工具。
package series

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/seriex/internal/cjk"
)

var (
	bracketRE = regexp.MustCompile(`\[[^\]]*\]`)
	parenRE   = regexp.MustCompile(`\([^)]*\)`)
	punctRE   = regexp.MustCompile(`[\s!！?？_~～]+`)
	spaceRE   = regexp.MustCompile(`\s+`)
)

// StripPrefix 剥掉名字开头第一个命中的系列前缀。
// prefixes 应已按长度降序排列，保证更长的前缀先被尝试。
func StripPrefix(name string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return name[len(p):], true
		}
	}
	return name, false
}

// Preprocess 把文件名归一为参与分组的形态：
// 取 basename 并做 NFC 归一，去掉最后一个扩展名，剥掉系列前缀，
// 删除方括号与圆括号片段，最后把空白压缩为单个空格。
func Preprocess(filename string, prefixes []string) string {
	if filename == "" {
		return ""
	}
	name := cjk.NFC(filepath.Base(filename))
	name = trimExt(name)
	name, _ = StripPrefix(name, prefixes)
	name = bracketRE.ReplaceAllString(name, "")
	name = parenRE.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

// Keywords 把预处理后的名字切成关键词序列。
func Keywords(name string) []string {
	return strings.Fields(name)
}

// BaseName 求“完全剥离后的基底名”：去扩展名、去括号内容、去空白与
// 常见语气标点，再折叠为简体。两个文件基底名相同视为同一作品的
// 不同版本，不允许互相作为系列证据。
func BaseName(filename string) string {
	if filename == "" {
		return ""
	}
	name := cjk.NFC(filepath.Base(filename))
	name = trimExt(name)
	name = bracketRE.ReplaceAllString(name, "")
	name = parenRE.ReplaceAllString(name, "")
	name = punctRE.ReplaceAllString(name, "")
	return cjk.Simplify(name)
}

// trimExt 去掉最后一个扩展名；点开头且没有其他点的名字原样保留。
func trimExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// despace 删除所有空白，用于“包含”类比较。
func despace(s string) string {
	return spaceRE.ReplaceAllString(s, "")
}

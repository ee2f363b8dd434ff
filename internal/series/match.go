package series

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/seriex/internal/cjk"
	"github.com/John-Robertt/seriex/internal/similarity"
)

// tagMatch 检查文件名（含扩展名）是否带系列前缀；命中则抽取前缀之后的
// 内容作为系列名（删掉括号片段并修剪空白）。名字为空时视为未命中。
func tagMatch(fileName string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if p == "" || !strings.HasPrefix(fileName, p) {
			continue
		}
		name := fileName[len(p):]
		name = bracketRE.ReplaceAllString(name, "")
		name = parenRE.ReplaceAllString(name, "")
		name = strings.TrimSpace(name)
		if name == "" {
			return "", false
		}
		return name, true
	}
	return "", false
}

// knownName 是归一后的已知系列名：norm 为折叠去空白小写形态，orig 为登记原名。
type knownName struct {
	norm string
	orig string
}

// buildKnownNames 归一已知系列名并按 norm 长度降序排列，
// 让更长、更具体的系列名先被匹配。
func buildKnownNames(names []string) []knownName {
	out := make([]knownName, 0, len(names))
	for _, s := range names {
		n := strings.ToLower(despace(cjk.Simplify(s)))
		if n != "" {
			out = append(out, knownName{norm: n, orig: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		li := utf8.RuneCountInString(out[i].norm)
		lj := utf8.RuneCountInString(out[j].norm)
		if li != lj {
			return li > lj
		}
		return out[i].norm < out[j].norm
	})
	return out
}

// knownSeriesMatch 用“文件词干包含系列名”的规则命中已知系列。
// stem 必须是未删括号的完整词干：汉化标记等括号内容也允许参与包含。
func knownSeriesMatch(stem string, known []knownName) (string, bool) {
	target := strings.ToLower(despace(cjk.Simplify(stem)))
	if target == "" {
		return "", false
	}
	for _, k := range known {
		if strings.Contains(target, k.norm) {
			return k.orig, true
		}
	}
	return "", false
}

// longestCommonKeywords 返回两个关键词序列的最长公共连续段（取自 a）。
func longestCommonKeywords(a, b []string) []string {
	aStart, _, size := similarity.LongestMatch(a, b)
	if size == 0 {
		return nil
	}
	return a[aStart : aStart+size]
}

// basenameContainment 判断系列名的折叠去空白形态是否包含于文件的
// 折叠名去空白形态。空系列名不参与。
func basenameContainment(fileFolded, seriesName string) bool {
	seriesFolded := despace(cjk.Simplify(seriesName))
	if seriesFolded == "" {
		return false
	}
	return strings.Contains(despace(fileFolded), seriesFolded)
}

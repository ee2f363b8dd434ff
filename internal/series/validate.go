package series

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/seriex/internal/cjk"
)

var (
	// 尾部的连接符、点号与数字（半角/全角混排）。
	trailingPunctRE = regexp.MustCompile(`[\s.．。·・+＋\-－—_＿\d]+$`)
	// 尾部的卷号/册数量词，如 第N卷、上中下、完结篇。
	trailingVolCJKRE = regexp.MustCompile(`[第章话集卷期篇季部册上中下前后完全][篇话集卷期章节部册全]*$`)
	trailingVolRE    = regexp.MustCompile(`(?i)vol\.?\s*\d*$`)
	trailingVolumeRE = regexp.MustCompile(`(?i)volume\s*\d*$`)
	trailingPartRE   = regexp.MustCompile(`(?i)part\s*\d*$`)
	comicRE          = regexp.MustCompile(`(?i)comic`)
)

// ValidateName 校验并清理候选系列名：折叠为简体、剥掉卷号类尾缀后，
// 剩下的必须仍是有分量的名字。无效时返回空串。
//
// 拒绝规则：
// - 清理后不足两个字符
// - 含 comic 字样（杂志合刊不是系列）
// - 全部词都只有单字且总长不超过 3（连接词碎片）
// - 最后一个词只有单字（截断产生的悬挂字符）
func ValidateName(name string) string {
	if utf8.RuneCountInString(name) <= 1 {
		return ""
	}

	name = cjk.Simplify(name)
	name = trailingPunctRE.ReplaceAllString(name, "")
	name = trailingVolCJKRE.ReplaceAllString(name, "")
	name = trailingVolRE.ReplaceAllString(name, "")
	name = trailingVolumeRE.ReplaceAllString(name, "")
	name = trailingPartRE.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)

	if comicRE.MatchString(name) {
		return ""
	}

	words := strings.Fields(name)
	allShort := true
	total := 0
	for _, w := range words {
		n := utf8.RuneCountInString(w)
		if n > 1 {
			allShort = false
		}
		total += n
	}
	if allShort && total <= 3 {
		return ""
	}
	if utf8.RuneCountInString(name) <= 1 {
		return ""
	}
	if len(words) > 0 && utf8.RuneCountInString(words[len(words)-1]) <= 1 {
		return ""
	}
	return name
}

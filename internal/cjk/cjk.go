// Package cjk 提供中文形态折叠：繁→简、简→繁与 NFC 归一。
//
// Simplify/Traditionalize 逐 rune 转换，保证输入与输出的 rune 数一致；
// 系列名抽取依赖这一点在折叠形态与原始形态之间做下标对齐。
package cjk

import (
	"strings"

	"github.com/siongui/gojianfan"
	"golang.org/x/text/unicode/norm"
)

// NFC 把字符串归一为 NFC 形态（组合等价的统一写法）。
// 所有进入分组管线的名字都先过这一步，之后的折叠不再改变 rune 数。
func NFC(s string) string {
	return norm.NFC.String(s)
}

// Simplify 把文本逐字折叠为简体；无对应关系的字符原样保留。
func Simplify(s string) string {
	return strings.Map(simplifyRune, s)
}

// Traditionalize 把文本逐字转换为繁体；无对应关系的字符原样保留。
func Traditionalize(s string) string {
	return strings.Map(traditionalizeRune, s)
}

func simplifyRune(r rune) rune {
	return mapRune(r, gojianfan.T2S)
}

func traditionalizeRune(r rune) rune {
	return mapRune(r, gojianfan.S2T)
}

// mapRune 在单字上调用转换表；转换结果必须仍是单字，否则保留原字。
func mapRune(r rune, conv func(string) string) rune {
	out := conv(string(r))
	rs := []rune(out)
	if len(rs) != 1 {
		return r
	}
	return rs[0]
}

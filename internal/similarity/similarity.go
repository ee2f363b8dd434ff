// Package similarity 提供字符串相似度计算。
//
// 底层统一使用 difflib 的 SequenceMatcher（在 rune 序列上工作），
// 在其上实现三种打分：整体 ratio、短串窗口 partial、分词排序 token。
package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/John-Robertt/seriex/internal/cjk"
)

// Config 汇总相似度阈值（对应配置文件的 [similarity] 表）。
// Threshold 参与分组与近似文件夹判定；其余阈值是各打分通道的
// 可调节预设，供上层按需取用。
type Config struct {
	Threshold        int     `toml:"threshold" json:"threshold"`
	LengthDiffMax    float64 `toml:"length_diff_max" json:"length_diff_max"`
	RatioThreshold   int     `toml:"ratio_threshold" json:"ratio_threshold"`
	PartialThreshold int     `toml:"partial_threshold" json:"partial_threshold"`
	TokenThreshold   int     `toml:"token_threshold" json:"token_threshold"`
}

// DefaultConfig 返回内置阈值。
func DefaultConfig() Config {
	return Config{
		Threshold:        75,
		LengthDiffMax:    0.3,
		RatioThreshold:   75,
		PartialThreshold: 85,
		TokenThreshold:   80,
	}
}

// Scorer 是带配置与日志的打分器。比较前会统一折叠为简体并转小写。
type Scorer struct {
	cfg Config
	log *zap.SugaredLogger
}

// NewScorer 构造打分器；cfg 为零值时回退到内置阈值，log 可为 nil。
func NewScorer(cfg Config, log *zap.SugaredLogger) *Scorer {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scorer{cfg: cfg, log: log}
}

// Threshold 返回综合判定阈值。
func (s *Scorer) Threshold() int {
	return s.cfg.Threshold
}

// Config 返回当前生效的阈值副本。
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score 返回两个字符串三种打分中的最大值（0-100）。
func (s *Scorer) Score(a, b string) int {
	fa := strings.ToLower(cjk.Simplify(a))
	fb := strings.ToLower(cjk.Simplify(b))

	best := RatioScore(fa, fb)
	if v := PartialRatioScore(fa, fb); v > best {
		best = v
	}
	if v := TokenSortRatioScore(fa, fb); v > best {
		best = v
	}
	if best >= s.cfg.Threshold {
		s.log.Debugf("相似度 %d%%：%q ~ %q", best, a, b)
	}
	return best
}

// WithinLengthDiff 判断两个名字的长度差是否在可比范围内（按较长者归一化）。
// 长度悬殊的名字即使局部重合也不值得比较。
func (s *Scorer) WithinLengthDiff(a, b string) bool {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 || lb == 0 {
		return la == lb
	}
	d := la - lb
	if d < 0 {
		d = -d
	}
	longer := la
	if lb > longer {
		longer = lb
	}
	return float64(d)/float64(longer) <= s.cfg.LengthDiffMax
}

// Runes 把字符串拆成单 rune 序列，供 SequenceMatcher 做字符级比较。
func Runes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}

// SeqRatio 在 rune 序列上计算 difflib ratio（0..1）。
func SeqRatio(a, b string) float64 {
	return difflib.NewMatcher(Runes(a), Runes(b)).Ratio()
}

// RatioScore 把 SeqRatio 换算成四舍五入的百分制整数。
func RatioScore(a, b string) int {
	return int(math.Round(SeqRatio(a, b) * 100))
}

// LongestMatch 返回 a 与 b 的最长公共连续段。
// 存在并列时取 a 中起点最早的那个（SequenceMatcher 的匹配块即按此序产出）。
func LongestMatch(a, b []string) (aStart, bStart, size int) {
	_, aStart, bStart, size = MatchProfile(a, b)
	return aStart, bStart, size
}

// MatchProfile 用同一个 matcher 一次算出 ratio 与最长公共段，
// 避免调用方为两个指标重复建立索引。
func MatchProfile(a, b []string) (ratio float64, aStart, bStart, size int) {
	m := difflib.NewMatcher(a, b)
	ratio = m.Ratio()
	var best difflib.Match
	for _, bl := range m.GetMatchingBlocks() {
		if bl.Size > best.Size {
			best = bl
		}
	}
	return ratio, best.A, best.B, best.Size
}

// PartialRatioScore 计算“短串对长串最佳窗口”的部分匹配得分：
// 以每个匹配块对齐出一个短串长度的窗口，取窗口 ratio 的最大值。
func PartialRatioScore(a, b string) int {
	shorter := Runes(a)
	longer := Runes(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		if len(longer) == 0 {
			return 100
		}
		return 0
	}

	m := difflib.NewMatcher(shorter, longer)
	best := 0.0
	for _, bl := range m.GetMatchingBlocks() {
		longStart := bl.B - bl.A
		if longStart < 0 {
			longStart = 0
		}
		longEnd := longStart + len(shorter)
		if longEnd > len(longer) {
			longEnd = len(longer)
		}
		r := difflib.NewMatcher(shorter, longer[longStart:longEnd]).Ratio()
		if r > 0.995 {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return int(math.Round(best * 100))
}

// TokenSortRatioScore 把两串分词排序后再做整体 ratio，消除词序差异。
// 分词时保留字母与数字（含 CJK），其余字符一律视作分隔。
func TokenSortRatioScore(a, b string) int {
	return RatioScore(tokenSorted(a), tokenSorted(b))
}

func tokenSorted(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

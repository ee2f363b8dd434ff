package series

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/seriex/internal/cjk"
	"github.com/John-Robertt/seriex/internal/domain"
	"github.com/John-Robertt/seriex/internal/registry"
	"github.com/John-Robertt/seriex/internal/similarity"
)

// fuzzyRatioFloor 是公共子串阶段的相似度下限（严格大于才算候选）。
const fuzzyRatioFloor = 0.6

// Options 汇总引擎的行为开关（来自配置层）。
type Options struct {
	// Prefixes 是识别系列标记用的前缀集合，按长度降序。
	Prefixes []string
	// KnownDirs 是配置给出的参考目录；注册表的运行时覆盖优先于它。
	KnownDirs []string
	// AllowSingle 控制已知系列命中单个文件时是否允许独立成组。
	AllowSingle bool
}

// Engine 按五个优先级递减的阶段把文件聚成系列组：
// 标记前缀 → 已知系列 → 关键词匹配 → 基底名包含 → 公共子串。
// 每个文件至多归入一个组；全部落空的文件进兜底组。
type Engine struct {
	opts Options
	reg  *registry.Registry
	log  *zap.SugaredLogger
}

// New 构造分组引擎；reg/log 可为 nil。
func New(opts Options, reg *registry.Registry, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if reg == nil {
		reg = registry.New(opts.Prefixes, log)
	}
	return &Engine{opts: opts, reg: reg, log: log}
}

// Registry 暴露引擎内部的已知系列注册表（运行时覆盖经由它注入）。
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// candidate 缓存一个文件派生出的全部比较形态，阶段之间不再重复计算。
type candidate struct {
	path    string   // 原始输入（通常是绝对路径）
	name    string   // NFC 后的文件名（含扩展名）
	stem    string   // 去掉最后一个扩展名
	proc    string   // 预处理形态（未折叠）
	keys    []string // proc 的关键词
	foldKey []string // keys 的逐词简体折叠
	folded  string   // proc 的简体折叠（与 proc 等长，按 rune）
	base    string   // 完全剥离后的基底名
}

func (e *Engine) newCandidate(path string) *candidate {
	name := cjk.NFC(filepath.Base(path))
	proc := Preprocess(path, e.opts.Prefixes)
	keys := Keywords(proc)
	foldKey := make([]string, len(keys))
	for i, k := range keys {
		foldKey[i] = cjk.Simplify(k)
	}
	return &candidate{
		path:    path,
		name:    name,
		stem:    trimExt(name),
		proc:    proc,
		keys:    keys,
		foldKey: foldKey,
		folded:  cjk.Simplify(proc),
		base:    BaseName(path),
	}
}

// groupSet 以创建顺序维护命名分组；同名分组合并追加。
type groupSet struct {
	order []*domain.SeriesGroup
	index map[string]*domain.SeriesGroup
}

func newGroupSet() *groupSet {
	return &groupSet{index: make(map[string]*domain.SeriesGroup)}
}

func (g *groupSet) add(name string, files ...string) {
	grp, ok := g.index[name]
	if !ok {
		grp = &domain.SeriesGroup{Name: name}
		g.index[name] = grp
		g.order = append(g.order, grp)
	}
	grp.Files = append(grp.Files, files...)
}

func (g *groupSet) names() []string {
	out := make([]string, 0, len(g.order))
	for _, grp := range g.order {
		out = append(out, grp.Name)
	}
	return out
}

func (g *groupSet) list() []domain.SeriesGroup {
	out := make([]domain.SeriesGroup, 0, len(g.order))
	for _, grp := range g.order {
		out = append(out, *grp)
	}
	return out
}

// state 是一次分组的工作区。remaining 保持输入顺序，阶段只会收缩它。
type state struct {
	remaining []*candidate
	groups    *groupSet
	assigned  map[string]struct{}
}

func (s *state) commit(name string, members []*candidate) {
	paths := make([]string, 0, len(members))
	for _, c := range members {
		paths = append(paths, c.path)
		s.assigned[c.path] = struct{}{}
	}
	s.groups.add(name, paths...)
}

func (s *state) drop(set map[*candidate]struct{}) {
	kept := s.remaining[:0]
	for _, c := range s.remaining {
		if _, ok := set[c]; !ok {
			kept = append(kept, c)
		}
	}
	s.remaining = kept
}

// FindGroups 对一组文件执行完整的五阶段分组。
//
// siblings 是同目录下既有子文件夹的名字（基底名包含阶段会把带前缀的
// 文件夹视作已存在的系列）。重复输入只按一次处理。返回值总是覆盖全部
// 输入：未归组的文件集中在兜底组（domain.Unclassified），顺序与输入一致。
func (e *Engine) FindGroups(paths []string, siblings []string) []domain.SeriesGroup {
	cands := make([]*candidate, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		cands = append(cands, e.newCandidate(p))
	}

	st := &state{
		remaining: append([]*candidate(nil), cands...),
		groups:    newGroupSet(),
		assigned:  make(map[string]struct{}, len(cands)),
	}

	e.tagPhase(st)
	e.knownPhase(st)
	e.keywordPhase(st)
	e.basenamePhase(st, siblings)
	e.fuzzyPhase(st)

	var leftovers []string
	for _, c := range cands {
		if _, ok := st.assigned[c.path]; !ok {
			leftovers = append(leftovers, c.path)
		}
	}
	if len(leftovers) > 0 {
		e.log.Infof("还有 %d 个文件未能匹配到任何系列", len(leftovers))
		st.groups.add(domain.Unclassified, leftovers...)
	}
	return st.groups.list()
}

// tagPhase 把已带系列前缀的文件直接按标记归组。
func (e *Engine) tagPhase(st *state) {
	if len(st.remaining) == 0 {
		return
	}
	e.log.Info("预处理阶段：检查已标记的系列")
	matched := make(map[*candidate]struct{})
	for _, c := range st.remaining {
		name, ok := tagMatch(c.name, e.opts.Prefixes)
		if !ok {
			continue
		}
		st.commit(name, []*candidate{c})
		matched[c] = struct{}{}
		e.log.Infof("预处理阶段：文件 '%s' 已标记为系列 '%s'", c.name, name)
	}
	st.drop(matched)
}

// knownPhase 让文件名包含已知系列名的文件归入该系列。
// 单文件命中且未启用单文件策略时放回，交给后续阶段继续尝试。
func (e *Engine) knownPhase(st *state) {
	if len(st.remaining) == 0 {
		return
	}
	runtime := e.reg.RuntimeDirs()
	switch {
	case len(runtime) > 0:
		e.reg.LoadFromDirs(runtime)
	case len(e.opts.KnownDirs) > 0:
		e.reg.LoadFromDirs(e.opts.KnownDirs)
	default:
		e.log.Info("优先阶段：未配置已知系列目录，跳过")
		return
	}

	known := e.reg.Snapshot()
	if len(known) == 0 {
		e.log.Info("优先阶段：参考目录里没有可用的系列名，跳过")
		return
	}
	e.log.Infof("优先阶段：匹配已知系列（%d 个系列名，%d 个待处理文件）", len(known), len(st.remaining))

	pairs := buildKnownNames(known)

	type hit struct {
		name  string
		cands []*candidate
	}
	var hits []*hit
	hitIdx := make(map[string]*hit)
	for _, c := range st.remaining {
		orig, ok := knownSeriesMatch(c.stem, pairs)
		if !ok {
			continue
		}
		h := hitIdx[orig]
		if h == nil {
			h = &hit{name: orig}
			hitIdx[orig] = h
			hits = append(hits, h)
		}
		h.cands = append(h.cands, c)
		e.log.Infof("优先阶段：文件 '%s' 命中已知系列 '%s'", c.name, orig)
	}

	committed := make(map[*candidate]struct{})
	for _, h := range hits {
		if len(h.cands) > 1 || e.opts.AllowSingle {
			st.commit(h.name, h.cands)
			for _, c := range h.cands {
				committed[c] = struct{}{}
			}
			e.log.Infof("优先阶段：将 %d 个文件归入已知系列 '%s'", len(h.cands), h.name)
			continue
		}
		e.log.Infof("优先阶段：已知系列 '%s' 只命中一个文件且未启用单文件策略，放回后续阶段", h.name)
	}
	st.drop(committed)
}

// keywordPhase 反复寻找“最长公共连续关键词段”最长且校验通过的文件对，
// 以该公共段命名成组，并吸收所有与首文件共享同一公共段的文件。
func (e *Engine) keywordPhase(st *state) {
	if len(st.remaining) < 2 {
		return
	}
	e.log.Info("第一阶段：关键词匹配")
	for len(st.remaining) > 1 {
		var (
			bestLen    int
			bestCommon []string
			bestName   string
			bestFirst  *candidate
			bestSecond *candidate
		)
		for i, c1 := range st.remaining {
			for j, c2 := range st.remaining {
				if i == j || c1.base == c2.base {
					continue
				}
				common := longestCommonKeywords(c1.foldKey, c2.foldKey)
				if len(common) == 0 || len(common) <= bestLen {
					continue
				}
				name := ValidateName(strings.Join(common, " "))
				if name == "" {
					continue
				}
				bestLen = len(common)
				bestCommon = common
				bestName = name
				bestFirst, bestSecond = c1, c2
			}
		}
		if bestFirst == nil {
			return
		}

		matched := map[*candidate]struct{}{bestFirst: {}, bestSecond: {}}
		members := []*candidate{bestFirst, bestSecond}
		for _, c := range st.remaining {
			if _, ok := matched[c]; ok {
				continue
			}
			if c.base == bestFirst.base {
				continue
			}
			if eqStrings(longestCommonKeywords(bestFirst.foldKey, c.foldKey), bestCommon) {
				matched[c] = struct{}{}
				members = append(members, c)
			}
		}

		st.commit(bestName, members)
		e.log.Infof("第一阶段：通过关键词匹配找到系列 '%s'", bestName)
		for _, c := range members {
			e.log.Infof("  └─ %s", c.name)
		}
		st.drop(matched)
	}
}

// basenamePhase 把文件归入“名字包含某个既有系列名”的系列。
// 既有系列 = 已产出的分组名 + 同目录下带前缀的子文件夹名。
// 每个文件只与首个命中的系列比对；同系列内基底名重复的文件不再加入。
func (e *Engine) basenamePhase(st *state, siblings []string) {
	if len(st.remaining) == 0 {
		return
	}
	e.log.Info("第二阶段：基底名包含匹配")

	existing := st.groups.names()
	present := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		present[n] = struct{}{}
	}
	for _, folder := range siblings {
		name, ok := StripPrefix(cjk.NFC(folder), e.opts.Prefixes)
		if !ok || name == "" {
			continue
		}
		if _, dup := present[name]; dup {
			continue
		}
		present[name] = struct{}{}
		existing = append(existing, name)
		e.log.Infof("第二阶段：从目录中发现已有系列 '%s'", name)
	}
	if len(existing) == 0 {
		return
	}

	type hit struct {
		name  string
		cands []*candidate
		bases map[string]struct{}
	}
	var hits []*hit
	hitIdx := make(map[string]*hit)
	matched := make(map[*candidate]struct{})

	for _, c := range st.remaining {
		for _, seriesName := range existing {
			if !basenameContainment(c.folded, seriesName) {
				continue
			}
			h := hitIdx[seriesName]
			if h == nil {
				h = &hit{name: seriesName, bases: make(map[string]struct{})}
				hitIdx[seriesName] = h
				hits = append(hits, h)
			}
			if _, dup := h.bases[c.base]; !dup {
				h.bases[c.base] = struct{}{}
				h.cands = append(h.cands, c)
				matched[c] = struct{}{}
				e.log.Infof("第二阶段：文件 '%s' 归入系列 '%s'（名字包含系列名）", c.name, seriesName)
			}
			// 只与首个命中的系列比对，即使因基底名重复被拒绝也不再试其他系列。
			break
		}
	}

	for _, h := range hits {
		st.commit(h.name, h.cands)
		e.log.Infof("第二阶段：系列 '%s' 共纳入 %d 个文件", h.name, len(h.cands))
	}
	st.drop(matched)
}

// fuzzyPhase 反复寻找字符级相似度最高的文件对（须严格超过下限），
// 取其最长公共子串在未折叠形态下的对应片段作为系列名候选。
// 候选校验失败时只丢弃该对的首文件，保证循环推进。
func (e *Engine) fuzzyPhase(st *state) {
	if len(st.remaining) < 2 {
		return
	}
	e.log.Info("第三阶段：公共子串匹配")
	for len(st.remaining) > 1 {
		var (
			bestRatio  float64
			bestFirst  *candidate
			bestSecond *candidate
			bestCommon string
			bestOrig   string
		)
		for i, c1 := range st.remaining {
			lower1 := similarity.Runes(strings.ToLower(c1.folded))
			orig1 := []rune(c1.proc)
			for j, c2 := range st.remaining {
				if i == j || c1.base == c2.base {
					continue
				}
				lower2 := similarity.Runes(strings.ToLower(c2.folded))
				ratio, aStart, _, size := similarity.MatchProfile(lower1, lower2)
				if ratio <= bestRatio || ratio <= fuzzyRatioFloor {
					continue
				}
				bestRatio = ratio
				bestFirst, bestSecond = c1, c2
				bestCommon = strings.Join(lower1[aStart:aStart+size], "")
				// 折叠与小写都逐 rune 进行，proc 与 folded 等长，可按下标取原形。
				if aStart+size <= len(orig1) {
					bestOrig = string(orig1[aStart : aStart+size])
				} else {
					bestOrig = ""
				}
			}
		}
		if bestFirst == nil || bestOrig == "" || len([]rune(strings.TrimSpace(bestCommon))) <= 1 {
			return
		}

		matched := map[*candidate]struct{}{bestFirst: {}, bestSecond: {}}
		members := []*candidate{bestFirst, bestSecond}
		for _, c := range st.remaining {
			if _, ok := matched[c]; ok {
				continue
			}
			if c.base == bestFirst.base {
				continue
			}
			if strings.Contains(strings.ToLower(c.folded), bestCommon) {
				matched[c] = struct{}{}
				members = append(members, c)
			}
		}

		name := ValidateName(bestOrig)
		if name == "" {
			// 公共段不是合格的系列名：丢弃首文件，其余下一轮重新配对。
			e.log.Infof("第三阶段：公共子串 '%s' 不是合格系列名，跳过 '%s'", bestCommon, bestFirst.name)
			st.drop(map[*candidate]struct{}{bestFirst: {}})
			continue
		}

		st.commit(name, members)
		e.log.Infof("第三阶段：通过公共子串找到系列 '%s'（相似度 %.0f%%）", name, bestRatio*100)
		for _, c := range members {
			e.log.Infof("  └─ %s", c.name)
		}
		st.drop(matched)
	}
}

// SeriesKey 计算单个名字的系列键：把它与自身的副本送入完整分组管线，
// 取第一个真实分组名；没有分组时退回“预处理 + 简体折叠”。
// 旧系列文件夹改名依赖该函数与新分组产生一致的名字。
func (e *Engine) SeriesKey(filename string, siblings []string) string {
	groups := e.FindGroups([]string{filename, filename}, siblings)
	for _, g := range groups {
		if g.Name != domain.Unclassified {
			return g.Name
		}
	}
	return strings.TrimSpace(cjk.Simplify(Preprocess(filename, e.opts.Prefixes)))
}

func eqStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package series

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/seriex/internal/domain"
	"github.com/John-Robertt/seriex/internal/registry"
)

func newTestEngine(opts Options) *Engine {
	if opts.Prefixes == nil {
		opts.Prefixes = testPrefixes
	}
	return New(opts, nil, nil)
}

func groupByName(t *testing.T, groups []domain.SeriesGroup, name string) domain.SeriesGroup {
	t.Helper()
	for _, g := range groups {
		if g.Name == name {
			return g
		}
	}
	t.Fatalf("找不到分组 %q，实际分组：%v", name, groupNames(groups))
	return domain.SeriesGroup{}
}

func groupNames(groups []domain.SeriesGroup) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Name)
	}
	return out
}

func TestFindGroupsKeywordPhase(t *testing.T) {
	e := newTestEngine(Options{})
	files := []string{
		"/lib/Alpha Tales 01.zip",
		"/lib/Alpha Tales 02.zip",
		"/lib/Standalone Work.zip",
	}
	groups := e.FindGroups(files, nil)

	g := groupByName(t, groups, "Alpha Tales")
	if len(g.Files) != 2 {
		t.Fatalf("期望 2 个文件，实际 %v", g.Files)
	}
	rest := groupByName(t, groups, domain.Unclassified)
	if len(rest.Files) != 1 || rest.Files[0] != "/lib/Standalone Work.zip" {
		t.Fatalf("兜底组不符：%v", rest.Files)
	}
}

func TestFindGroupsTagPhase(t *testing.T) {
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/[#s]Beta Saga 05.zip",
		"/lib/#短篇集 第1话.zip",
	}, nil)

	// 标记阶段保留扩展名（与文件夹改名用的键不同属刻意行为）。
	if g := groupByName(t, groups, "Beta Saga 05.zip"); len(g.Files) != 1 {
		t.Fatalf("标记分组不符：%v", g.Files)
	}
	if g := groupByName(t, groups, "短篇集 第1话.zip"); len(g.Files) != 1 {
		t.Fatalf("短前缀分组不符：%v", g.Files)
	}
}

func TestFindGroupsKnownSeries(t *testing.T) {
	ref := t.TempDir()
	if err := os.MkdirAll(filepath.Join(ref, "[#s]Magic Girl"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	e := newTestEngine(Options{KnownDirs: []string{ref}, AllowSingle: true})
	groups := e.FindGroups([]string{
		"/lib/[汉化] Magic Girl S2.zip",
		"/lib/Unrelated Thing.zip",
	}, nil)

	g := groupByName(t, groups, "Magic Girl")
	if len(g.Files) != 1 || g.Files[0] != "/lib/[汉化] Magic Girl S2.zip" {
		t.Fatalf("已知系列分组不符：%v", g.Files)
	}
}

func TestFindGroupsKnownSeriesSingleReleased(t *testing.T) {
	ref := t.TempDir()
	if err := os.MkdirAll(filepath.Join(ref, "[#s]Magic Girl"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	// 未启用单文件策略：单个命中放回后续阶段，最终落入兜底组。
	e := newTestEngine(Options{KnownDirs: []string{ref}, AllowSingle: false})
	groups := e.FindGroups([]string{
		"/lib/Magic Girl S2.zip",
		"/lib/Unrelated Thing.zip",
	}, nil)

	for _, g := range groups {
		if g.Name == "Magic Girl" {
			t.Fatalf("单文件命中不应独立成组：%v", groupNames(groups))
		}
	}
	rest := groupByName(t, groups, domain.Unclassified)
	if len(rest.Files) != 2 {
		t.Fatalf("两个文件都应落入兜底组：%v", rest.Files)
	}

	// 两个文件命中同一已知系列时不受单文件策略影响。
	e2 := newTestEngine(Options{KnownDirs: []string{ref}, AllowSingle: false})
	groups = e2.FindGroups([]string{
		"/lib/Magic Girl S2.zip",
		"/lib/Magic Girl OVA.zip",
	}, nil)
	if g := groupByName(t, groups, "Magic Girl"); len(g.Files) != 2 {
		t.Fatalf("双文件命中应成组：%v", g.Files)
	}
}

func TestFindGroupsRuntimeOverride(t *testing.T) {
	cfgRef := t.TempDir()
	runRef := t.TempDir()
	if err := os.MkdirAll(filepath.Join(cfgRef, "配置系列"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.MkdirAll(filepath.Join(runRef, "运行时系列"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	reg := registry.New(testPrefixes, nil)
	e := New(Options{Prefixes: testPrefixes, KnownDirs: []string{cfgRef}, AllowSingle: true}, reg, nil)
	reg.Override([]string{runRef})

	groups := e.FindGroups([]string{
		"/lib/运行时系列 第1卷.zip",
		"/lib/配置系列 第1卷.zip",
	}, nil)

	// 运行时覆盖生效：只认运行时参考目录里的系列。
	if g := groupByName(t, groups, "运行时系列"); len(g.Files) != 1 {
		t.Fatalf("运行时系列分组不符：%v", g.Files)
	}
	for _, g := range groups {
		if g.Name == "配置系列" {
			t.Fatalf("配置目录在覆盖后不应生效：%v", groupNames(groups))
		}
	}
}

func TestFindGroupsBasenamePhaseSiblings(t *testing.T) {
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/Alpha Tales 03.zip",
		"/lib/Zeta Omega Story.zip",
	}, []string{"[#s]Alpha Tales", "普通文件夹"})

	g := groupByName(t, groups, "Alpha Tales")
	if len(g.Files) != 1 || g.Files[0] != "/lib/Alpha Tales 03.zip" {
		t.Fatalf("基底名包含阶段不符：%v", g.Files)
	}
	rest := groupByName(t, groups, domain.Unclassified)
	if len(rest.Files) != 1 {
		t.Fatalf("兜底组不符：%v", rest.Files)
	}
}

func TestFindGroupsBasenamePhaseJoinsEarlierGroup(t *testing.T) {
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/Alpha Tales 01.zip",
		"/lib/Alpha Tales 02.zip",
		"/lib/AlphaTales合订本.zip",
	}, nil)

	// 合订本没有公共关键词，但去空白后包含系列名，应并入同一组。
	g := groupByName(t, groups, "Alpha Tales")
	if len(g.Files) != 3 {
		t.Fatalf("期望 3 个文件，实际 %v", g.Files)
	}
}

func TestFindGroupsFuzzyPhase(t *testing.T) {
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/魔法之旅1.zip",
		"/lib/魔法之旅2.zip",
		"/lib/魔法之旅3.zip",
		"/lib/孤本作品.zip",
	}, nil)

	g := groupByName(t, groups, "魔法之旅")
	if len(g.Files) != 3 {
		t.Fatalf("期望吸收 3 个文件，实际 %v", g.Files)
	}
	rest := groupByName(t, groups, domain.Unclassified)
	if len(rest.Files) != 1 || rest.Files[0] != "/lib/孤本作品.zip" {
		t.Fatalf("兜底组不符：%v", rest.Files)
	}
}

func TestFindGroupsFuzzyTraditionalSimplified(t *testing.T) {
	// 繁简混排：折叠后才能对上公共子串，系列名取自未折叠形态再折叠回简体。
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/魔法護衛隊1.zip",
		"/lib/魔法护卫队2.zip",
	}, nil)

	g := groupByName(t, groups, "魔法护卫队")
	if len(g.Files) != 2 {
		t.Fatalf("繁简折叠分组不符：%v", g.Files)
	}
}

func TestFindGroupsFuzzyInvalidNameDiscardsFirst(t *testing.T) {
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/comic战记 01.zip",
		"/lib/comic战记 02.zip",
	}, nil)

	// 公共子串含 comic 字样，校验失败：两个文件都进兜底组，顺序与输入一致。
	if len(groups) != 1 {
		t.Fatalf("期望只有兜底组，实际 %v", groupNames(groups))
	}
	rest := groupByName(t, groups, domain.Unclassified)
	if len(rest.Files) != 2 || rest.Files[0] != "/lib/comic战记 01.zip" {
		t.Fatalf("兜底组不符：%v", rest.Files)
	}
}

func TestFindGroupsFuzzyShortCommonStops(t *testing.T) {
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/天 上卷.zip",
		"/lib/天 下卷.zip",
	}, nil)

	// 公共子串修剪后只剩单字：阶段整体停止，不再强行配对。
	rest := groupByName(t, groups, domain.Unclassified)
	if len(rest.Files) != 2 {
		t.Fatalf("期望都落入兜底组：%v", groupNames(groups))
	}
}

func TestFindGroupsSameBaseNeverPairs(t *testing.T) {
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/魔法之旅 01 [汉化].zip",
		"/lib/魔法之旅 01 (无修).zip",
	}, nil)

	// 同一作品的两个版本（基底名一致）不能互为系列证据。
	if len(groups) != 1 || groups[0].Name != domain.Unclassified {
		t.Fatalf("同基底名文件不应成组：%v", groupNames(groups))
	}
}

func TestFindGroupsDeduplicatesInput(t *testing.T) {
	e := newTestEngine(Options{})
	groups := e.FindGroups([]string{
		"/lib/Alpha Tales 01.zip",
		"/lib/Alpha Tales 01.zip",
		"/lib/Alpha Tales 02.zip",
	}, nil)

	g := groupByName(t, groups, "Alpha Tales")
	if len(g.Files) != 2 {
		t.Fatalf("重复输入应只按一次处理：%v", g.Files)
	}
}

func TestFindGroupsCoversAllInput(t *testing.T) {
	e := newTestEngine(Options{})
	files := []string{
		"/lib/[#s]Beta Saga 05.zip",
		"/lib/Alpha Tales 01.zip",
		"/lib/Alpha Tales 02.zip",
		"/lib/魔法之旅1.zip",
		"/lib/魔法之旅2.zip",
		"/lib/孤本作品.zip",
	}
	groups := e.FindGroups(files, nil)

	seen := make(map[string]int)
	for _, g := range groups {
		for _, f := range g.Files {
			seen[f]++
		}
	}
	for _, f := range files {
		if seen[f] != 1 {
			t.Fatalf("文件 %q 出现 %d 次，分组：%v", f, seen[f], groups)
		}
	}
	if len(seen) != len(files) {
		t.Fatalf("分组应恰好覆盖全部输入：%v", seen)
	}
}

func TestSeriesKey(t *testing.T) {
	e := newTestEngine(Options{})

	// 无法分组时退回预处理+简体折叠。
	if got := e.SeriesKey("Alpha Tales 01 [汉化].zip", nil); got != "Alpha Tales 01" {
		t.Fatalf("期望 'Alpha Tales 01'，实际 %q", got)
	}
	// 标记名直接取标记内容。
	if got := e.SeriesKey("[#s]Beta Saga", nil); got != "Beta Saga" {
		t.Fatalf("期望 'Beta Saga'，实际 %q", got)
	}
	// 繁体输入折叠为简体。
	if got := e.SeriesKey("魔法護衛隊 第3卷.zip", nil); got != "魔法护卫队 第3卷" {
		t.Fatalf("期望简体键，实际 %q", got)
	}

	// 文件夹名（无扩展名）的键是稳定点：再求一次键不变。
	key := e.SeriesKey("[#s]旧系列 [完结]", nil)
	if key != "旧系列" {
		t.Fatalf("期望 '旧系列'，实际 %q", key)
	}
	if again := e.SeriesKey(key, nil); again != key {
		t.Fatalf("键应幂等：%q -> %q", key, again)
	}
}

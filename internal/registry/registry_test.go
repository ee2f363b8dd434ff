package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

var testPrefixes = []string{"[#s]", "#"}

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	return p
}

func TestLoadFromDirsStripsPrefixes(t *testing.T) {
	ref := t.TempDir()
	mkdir(t, ref, "[#s]魔法少女")
	mkdir(t, ref, "#短篇集锦")
	mkdir(t, ref, "普通系列")
	if err := os.WriteFile(filepath.Join(ref, "不是目录.zip"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}

	r := New(testPrefixes, nil)
	r.LoadFromDirs([]string{ref})

	for _, name := range []string{"魔法少女", "短篇集锦", "普通系列"} {
		if !r.Contains(name) {
			t.Fatalf("期望包含 %q", name)
		}
	}
	if r.Contains("不是目录") {
		t.Fatalf("普通文件不应进入已知系列")
	}
	// 查询时允许带前缀。
	if !r.Contains("[#s]魔法少女") {
		t.Fatalf("带前缀查询应命中")
	}
	if r.Contains("") {
		t.Fatalf("空名不应命中")
	}
}

func TestLoadFromDirsProcessedOnce(t *testing.T) {
	ref := t.TempDir()
	mkdir(t, ref, "初始系列")

	r := New(testPrefixes, nil)
	r.LoadFromDirs([]string{ref})

	// 已处理目录不再重扫：新增子目录不可见。
	mkdir(t, ref, "后来新增")
	r.LoadFromDirs([]string{ref})
	if r.Contains("后来新增") {
		t.Fatalf("已处理目录不应被重扫")
	}

	// Override 强制重扫。
	r.Override([]string{ref})
	if !r.Contains("后来新增") || !r.Contains("初始系列") {
		t.Fatalf("Override 后应重扫出全部子目录")
	}
}

func TestOverrideReplacesWholesale(t *testing.T) {
	refA := t.TempDir()
	refB := t.TempDir()
	mkdir(t, refA, "甲系列")
	mkdir(t, refB, "乙系列")

	r := New(testPrefixes, nil)
	r.LoadFromDirs([]string{refA})
	if !r.Contains("甲系列") {
		t.Fatalf("预置失败")
	}

	r.Override([]string{refB})
	if r.Contains("甲系列") {
		t.Fatalf("Override 应清空旧来源")
	}
	if !r.Contains("乙系列") {
		t.Fatalf("Override 应加载新来源")
	}
	if dirs := r.RuntimeDirs(); len(dirs) != 1 || dirs[0] != refB {
		t.Fatalf("RuntimeDirs 不符：%v", dirs)
	}

	r.Reset()
	if r.Contains("乙系列") || len(r.RuntimeDirs()) != 0 {
		t.Fatalf("Reset 后应回到未加载状态")
	}
}

func TestLoadFromDirsUnreadable(t *testing.T) {
	r := New(testPrefixes, nil)
	// 不存在的目录：跳过且不报错。
	r.LoadFromDirs([]string{filepath.Join(t.TempDir(), "不存在")})
	if got := r.Snapshot(); len(got) != 0 {
		t.Fatalf("期望空集，实际 %v", got)
	}
}

func TestSnapshotSorted(t *testing.T) {
	ref := t.TempDir()
	mkdir(t, ref, "bbb")
	mkdir(t, ref, "aaa")
	r := New(testPrefixes, nil)
	r.LoadFromDirs([]string{ref})
	got := r.Snapshot()
	if len(got) != 2 || got[0] != "aaa" || got[1] != "bbb" {
		t.Fatalf("快照应有序：%v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ref := t.TempDir()
	mkdir(t, ref, "并发系列")

	r := New(testPrefixes, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.LoadFromDirs([]string{ref})
			_ = r.Contains("并发系列")
			_ = r.Snapshot()
		}()
	}
	wg.Wait()
	if !r.Contains("并发系列") {
		t.Fatalf("并发加载后应命中")
	}
}

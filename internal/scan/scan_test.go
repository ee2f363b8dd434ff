package scan

import (
	"os"
	"path/filepath"
	"testing"
)

var testFormats = []string{".zip", ".rar", ".7z", ".cbz", ".cbr", ".mp4", ".nov"}

func writeFile(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
	return p
}

func fileNames(ls Listing) []string {
	out := make([]string, 0, len(ls.Files))
	for _, f := range ls.Files {
		out = append(out, f.Name)
	}
	return out
}

func TestCollectDepthRule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "根层.zip")
	writeFile(t, root, "一层", "一层文件.zip")
	writeFile(t, root, "一层", "二层", "太深了.zip")

	ls, err := Collect(root, testFormats)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	got := fileNames(ls)
	if len(got) != 2 {
		t.Fatalf("深度规则不符：%v", got)
	}
	for _, n := range got {
		if n == "太深了.zip" {
			t.Fatalf("二层文件不应被收集：%v", got)
		}
	}
	// 一层目录的子文件夹也要进 Siblings。
	if sib := ls.Siblings[filepath.Join(root, "一层")]; len(sib) != 1 || sib[0] != "二层" {
		t.Fatalf("一层目录的 Siblings 不符：%v", sib)
	}
}

func TestCollectSkipsTaggedAndReserved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "普通文件.zip")
	writeFile(t, root, "[#s]某系列", "某系列 01.zip")
	writeFile(t, root, ReservedCorrupted, "坏档.zip")

	ls, err := Collect(root, testFormats)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := fileNames(ls); len(got) != 1 || got[0] != "普通文件.zip" {
		t.Fatalf("标记目录与收容目录应跳过：%v", got)
	}
	// 被跳过的目录仍要作为兄弟文件夹证据出现。
	sib := ls.Siblings[root]
	if len(sib) != 2 || sib[0] != "[#s]某系列" || sib[1] != ReservedCorrupted {
		t.Fatalf("Siblings 不符：%v", sib)
	}
}

func TestCollectExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "要的.ZIP")
	writeFile(t, root, "不要的.txt")
	writeFile(t, root, "没扩展名")

	ls, err := Collect(root, testFormats)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := fileNames(ls); len(got) != 1 || got[0] != "要的.ZIP" {
		t.Fatalf("扩展名过滤不符：%v", got)
	}
	if ls.Files[0].Ext != ".zip" || ls.Files[0].Stem != "要的" {
		t.Fatalf("候选字段不符：%+v", ls.Files[0])
	}
}

func TestCollectBlacklist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "某某画集合刊.zip")
	writeFile(t, root, "Artist FanBox 2024.zip")
	writeFile(t, root, "普通系列 01.zip")

	ls, err := Collect(root, testFormats)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := fileNames(ls); len(got) != 1 || got[0] != "普通系列 01.zip" {
		t.Fatalf("黑名单过滤不符：%v", got)
	}
}

func TestCollectDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.zip")
	writeFile(t, root, "a.zip")
	writeFile(t, root, "c.zip")

	ls, err := Collect(root, testFormats)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	got := fileNames(ls)
	if len(got) != 3 || got[0] != "a.zip" || got[1] != "b.zip" || got[2] != "c.zip" {
		t.Fatalf("输出应按路径排序：%v", got)
	}
}

func TestCollectBadRoot(t *testing.T) {
	if _, err := Collect(filepath.Join(t.TempDir(), "不存在"), testFormats); err == nil {
		t.Fatalf("不存在的根目录应直接失败")
	}
	f := writeFile(t, t.TempDir(), "文件.zip")
	if _, err := Collect(f, testFormats); err == nil {
		t.Fatalf("根路径是文件时应直接失败")
	}
}

func TestIsBlacklisted(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"某某画集.zip", true},
		{"PIXIV精选.zip", true},
		{"作者・合集.zip", true},
		{"正常系列 01.zip", false},
	}
	for _, c := range cases {
		if got := IsBlacklisted(c.name); got != c.want {
			t.Fatalf("IsBlacklisted(%q) 期望 %v，实际 %v", c.name, c.want, got)
		}
	}
}

package report

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/seriex/internal/domain"
)

func samplePlan() domain.RelocationPlan {
	return domain.RelocationPlan{
		Root: "/lib",
		Dirs: []domain.DirPlan{
			{
				Dir: "/lib/in",
				Folders: []domain.FolderPlan{
					{Folder: "[#s]魔法之旅", Files: []string{"/lib/in/魔法之旅 1.zip", "/lib/in/魔法之旅 2.zip"}},
				},
			},
		},
	}
}

func TestEncodePlan_HeaderAndRoundTrip(t *testing.T) {
	plan := samplePlan()

	b, err := EncodePlan(plan)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.HasPrefix(b, []byte("# seriex relocation plan\n")) {
		t.Fatalf("期望文档以标识注释开头，实际：%q", string(b[:40]))
	}
	if !strings.Contains(string(b), "[#s]魔法之旅") {
		t.Fatalf("文档缺少文件夹名：%s", string(b))
	}

	var back domain.RelocationPlan
	if err := yaml.Unmarshal(b, &back); err != nil {
		t.Fatalf("反序列化失败：%v", err)
	}
	if !reflect.DeepEqual(back, plan) {
		t.Fatalf("往返后不一致：\n期望 %+v\n实际 %+v", plan, back)
	}
}

func TestEncodePlan_Deterministic(t *testing.T) {
	plan := samplePlan()

	a, err := EncodePlan(plan)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := EncodePlan(plan)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("两次编码应逐字节一致")
	}
}

func TestEncodeReport_UTCAndHeader(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	rep := domain.RunReport{
		Root:      "/lib",
		StartedAt: time.Date(2024, 5, 1, 20, 0, 0, 0, loc),
		Dirs: []domain.DirResult{
			{
				Dir:    "/lib/in",
				Status: domain.DirStatusApplied,
				Folders: []domain.FolderResult{
					{Folder: "[#s]魔法之旅", Moved: []string{"魔法之旅 1.zip"}},
				},
			},
		},
	}
	rep.FinishedAt = rep.StartedAt.Add(2 * time.Second)
	rep.Finalize()

	b, err := EncodeReport(rep)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.HasPrefix(b, []byte("# seriex run report\n")) {
		t.Fatalf("期望文档以标识注释开头，实际：%q", string(b[:40]))
	}
	s := string(b)
	if !strings.Contains(s, "2024-05-01T12:00:00Z") {
		t.Fatalf("期望 UTC 时间（后缀 Z），实际：%s", s)
	}
	if !strings.Contains(s, "moved: 1") {
		t.Fatalf("期望 summary.moved=1，实际：%s", s)
	}
}

func TestWriteDocument_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")

	if err := WriteDocument(path, []byte("v1\n")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteDocument(path, []byte("v2\n")); err != nil {
		t.Fatalf("覆盖写入失败：%v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil || string(b) != "v2\n" {
		t.Fatalf("期望内容 v2，实际 %q（err=%v）", string(b), err)
	}
}

package main

import (
	"testing"
)

func TestParseArgs_ValueFlagForms(t *testing.T) {
	ca, err := parseArgs([]string{
		"lib",
		"--config", "a.toml",
		"--known-dir=ref1",
		"--known-dir", "ref2",
		"--out=plan.yaml",
		"--no-prefix",
		"--verbose",
	}, planFlags)
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if ca.Path != "lib" || ca.Config != "a.toml" || ca.Out != "plan.yaml" {
		t.Fatalf("基础字段解析不对：%+v", ca)
	}
	if len(ca.KnownDirs) != 2 || ca.KnownDirs[0] != "ref1" || ca.KnownDirs[1] != "ref2" {
		t.Fatalf("known-dir 期望 [ref1 ref2]，实际 %v", ca.KnownDirs)
	}
	if !ca.NoPrefix || !ca.Verbose {
		t.Fatalf("布尔开关解析不对：%+v", ca)
	}
}

func TestParseArgs_AllowSingleOverride(t *testing.T) {
	ca, err := parseArgs([]string{"--allow-single=false"}, runFlags)
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if ca.AllowSingle || !ca.AllowSingleSet {
		t.Fatalf("期望 AllowSingle=false 且显式指定，实际 %+v", ca)
	}

	ca, err = parseArgs([]string{"--allow-single"}, runFlags)
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if !ca.AllowSingle || !ca.AllowSingleSet {
		t.Fatalf("期望 AllowSingle=true 且显式指定，实际 %+v", ca)
	}

	if _, err := parseArgs([]string{"--allow-single=maybe"}, runFlags); err == nil {
		t.Fatalf("期望非法取值报错")
	}
}

func TestParseArgs_RejectsUnknownAndForeignFlags(t *testing.T) {
	if _, err := parseArgs([]string{"--bogus"}, runFlags); err == nil {
		t.Fatalf("期望未知参数报错")
	}
	// plan 不接受 --report。
	if _, err := parseArgs([]string{"--report=o.yaml"}, planFlags); err == nil {
		t.Fatalf("期望 plan 拒绝 --report")
	}
	// rename 不接受 --known-dir。
	if _, err := parseArgs([]string{"--known-dir", "ref"}, renameFlags); err == nil {
		t.Fatalf("期望 rename 拒绝 --known-dir")
	}
	if _, err := parseArgs([]string{"a", "b"}, runFlags); err == nil {
		t.Fatalf("期望重复 path 报错")
	}
	if _, err := parseArgs([]string{"--config"}, runFlags); err == nil {
		t.Fatalf("期望缺值报错")
	}
	if _, err := parseArgs([]string{"--config="}, runFlags); err == nil {
		t.Fatalf("期望空值报错")
	}
}

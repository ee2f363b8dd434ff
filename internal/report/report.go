// Package report 把迁移计划与运行报告渲染成 YAML 文档。
//
// 输出是确定性的：字段顺序由结构体标签固定，目录与文件的顺序由
// 计划/报告本身保证（报告需先 Finalize）。stdout 契约要求一次运行
// 恰好产出一个文档，所以这里只做编码，不做拼接。
package report

import (
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/seriex/internal/domain"
	"github.com/John-Robertt/seriex/internal/infra/fsx"
)

// 文档首行标记产出工具与文档类型，便于人工与脚本识别。
const (
	planHeader   = "# seriex relocation plan\n"
	reportHeader = "# seriex run report\n"
)

// EncodePlan 把迁移计划渲染成单个 YAML 文档。
func EncodePlan(plan domain.RelocationPlan) ([]byte, error) {
	b, err := yaml.Marshal(plan)
	if err != nil {
		return nil, err
	}
	return append([]byte(planHeader), b...), nil
}

// EncodeReport 把运行报告渲染成单个 YAML 文档。调用方负责先 Finalize。
func EncodeReport(rep domain.RunReport) ([]byte, error) {
	b, err := yaml.Marshal(rep)
	if err != nil {
		return nil, err
	}
	return append([]byte(reportHeader), b...), nil
}

// WriteDocument 用原子替换方式把文档写到 path（覆盖同名文件）。
func WriteDocument(path string, data []byte) error {
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), data)
}

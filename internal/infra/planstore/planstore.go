// Package planstore 持久化迁移计划，支撑 plan 与 apply 分进程运行。
package planstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/seriex/internal/domain"
	"github.com/John-Robertt/seriex/internal/report"
)

// Save 把计划写到 path（YAML 文档，原子替换）。
func Save(path string, plan domain.RelocationPlan) error {
	b, err := report.EncodePlan(plan)
	if err != nil {
		return err
	}
	return report.WriteDocument(path, b)
}

// Load 读取之前保存的计划。文件不存在时 ok=false 且不报错；
// 存在但无法解析时报错。空计划是合法的（apply 对它是空操作）。
func Load(path string) (domain.RelocationPlan, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.RelocationPlan{}, false, nil
		}
		return domain.RelocationPlan{}, false, err
	}

	var plan domain.RelocationPlan
	if err := yaml.Unmarshal(b, &plan); err != nil {
		return domain.RelocationPlan{}, false, fmt.Errorf("解析计划文件失败：%w", err)
	}
	return plan, true, nil
}

package series

import (
	"github.com/John-Robertt/seriex/internal/similarity"
)

// SimilarToExisting 判断拟创建的系列名是否与某个既有文件夹“近似”。
// 带前缀的文件夹先比系列键是否一致，再比相似度；普通文件夹直接比
// 相似度。长度悬殊的名字跳过打分。只用于提示，不改变计划语义。
func (e *Engine) SimilarToExisting(folders []string, seriesName string, scorer *similarity.Scorer) bool {
	if seriesName == "" || scorer == nil {
		return false
	}
	seriesKey := e.SeriesKey(seriesName, nil)
	for _, folder := range folders {
		if folder == "" {
			continue
		}
		if stripped, ok := StripPrefix(folder, e.opts.Prefixes); ok {
			folderKey := e.SeriesKey(stripped, nil)
			if folderKey == "" {
				continue
			}
			if seriesKey == folderKey {
				e.log.Infof("系列 '%s' 与文件夹 '%s' 系列键一致", seriesName, folder)
				return true
			}
			if scorer.WithinLengthDiff(seriesKey, folderKey) && scorer.Score(seriesKey, folderKey) >= scorer.Threshold() {
				e.log.Infof("系列 '%s' 与文件夹 '%s' 相似度过阈值", seriesName, folder)
				return true
			}
			continue
		}
		if scorer.WithinLengthDiff(seriesName, folder) && scorer.Score(seriesName, folder) >= scorer.Threshold() {
			e.log.Infof("系列 '%s' 与文件夹 '%s' 相似度过阈值", seriesName, folder)
			return true
		}
	}
	return false
}

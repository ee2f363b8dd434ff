package domain

// Unclassified 是兜底分组名：所有阶段都没能归入系列的文件集中在这里。
// 该组只出现在分组结果里，规划阶段会把它排除，永远不会产生搬移。
const Unclassified = "其他"

// SeriesGroup 是一个命名的文件簇。Files 保持加入顺序，且都位于同一目录。
type SeriesGroup struct {
	Name  string
	Files []string
}

package domain

// FolderPlan 描述一个目标系列文件夹与将要移入的源文件（绝对路径）。
// Folder 只是文件夹名（可能带系列前缀），不含父目录。
type FolderPlan struct {
	Folder string   `yaml:"folder" json:"folder"`
	Files  []string `yaml:"files" json:"files"`
}

// DirPlan 是单个目录的搬移计划。Folders 保持分组引擎的产出顺序。
type DirPlan struct {
	Dir     string       `yaml:"dir" json:"dir"`
	Folders []FolderPlan `yaml:"folders" json:"folders"`
}

// RelocationPlan 是一次 prepare 的完整产物：目录 → 文件夹 → 文件。
//
// 不变量：
// - 同一目录内一个文件至多出现在一个文件夹下
// - 若某目录的全部文件会落进同一个文件夹，该目录整体不出现在计划里
// - 计划是纯数据，生成过程不做任何移动
type RelocationPlan struct {
	Root string    `yaml:"root" json:"root"`
	Dirs []DirPlan `yaml:"dirs" json:"dirs"`
}

// Empty 报告计划是否不含任何搬移。
func (p RelocationPlan) Empty() bool {
	return p.FileCount() == 0
}

// FileCount 统计计划内的文件总数。
func (p RelocationPlan) FileCount() int {
	n := 0
	for _, d := range p.Dirs {
		for _, f := range d.Folders {
			n += len(f.Files)
		}
	}
	return n
}

package domain

// CandidateFile 是扫描阶段产出的候选文件（只做 stat 与名字切分，不读内容）。
//
// 不变量：
// - AbsPath 为 clean 过的绝对路径
// - Dir == filepath.Dir(AbsPath)；分组与搬移都以该目录为作用域
type CandidateFile struct {
	AbsPath string
	Dir     string
	Name    string // 文件名（含扩展名）
	Stem    string // 去掉最后一个扩展名的文件名
	Ext     string // 小写扩展名（含点），如 ".zip"
}

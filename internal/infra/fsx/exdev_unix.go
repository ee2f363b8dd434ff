//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// isEXDEV 识别跨文件系统 rename 的失败形态。os.Rename 把 errno 包在
// *os.LinkError 里，errors.Is 沿 Unwrap 链同时覆盖裸 errno 与包装形态。
func isEXDEV(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

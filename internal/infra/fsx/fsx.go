package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// DefaultMoveRetries 是跨盘 copy+delete 回退的重试上限。
const DefaultMoveRetries = 2

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
// 上层可把它映射为 error_code=target_conflict。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// SafeMove 捕获它并退回 copy+delete；直接调用 Rename 的场景由上层自行处理。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// MoveError 表示一次文件移动失败。上层把它映射为 error_code=move_failed，
// 跳过该文件并继续处理计划里其余的文件。
type MoveError struct {
	Src string
	Dst string
	Err error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("移动失败：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

func IsMove(err error) bool {
	var e *MoveError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureDir 创建目录（幂等，已存在的目录不报错）。
// 路径已被非目录占用时返回 PathTypeConflictError。
func EnsureDir(dir string) error {
	fi, err := os.Lstat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		got := "file"
		if !fi.Mode().IsRegular() {
			got = fi.Mode().Type().String()
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: got}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// AllocUnique 为 dst 找一个未被占用的落点：dst 本身空闲时原样返回，
// 否则在扩展名前追加 _1、_2…… 直到空闲。
func AllocUnique(dst string) (string, error) {
	if _, err := os.Lstat(dst); err != nil {
		if os.IsNotExist(err) {
			return dst, nil
		}
		return "", err
	}

	dir := filepath.Dir(dst)
	name := filepath.Base(dst)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 1; ; n++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if _, err := os.Lstat(cand); err != nil {
			if os.IsNotExist(err) {
				return cand, nil
			}
			return "", err
		}
	}
}

// SafeMove 把 src 移动到 dst，目标被占用时自动换用带后缀的名字。
// rename 因跨盘失败时退回 copy+delete（有限重试）。返回实际落点，
// 调用方据此得知移动过程中发生过的改名。
func SafeMove(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", &MoveError{Src: src, Dst: dst, Err: err}
	}

	final, err := AllocUnique(dst)
	if err != nil {
		return "", &MoveError{Src: src, Dst: dst, Err: err}
	}

	err = Rename(src, final)
	if err == nil {
		return final, nil
	}
	if !IsCrossDevice(err) {
		return "", &MoveError{Src: src, Dst: final, Err: err}
	}

	// 跨盘：copy+delete。半成品在重试前清掉。
	var last error
	for attempt := 0; attempt <= DefaultMoveRetries; attempt++ {
		if last = copyFile(src, final); last == nil {
			if rmErr := os.Remove(src); rmErr != nil {
				return "", &MoveError{Src: src, Dst: final, Err: rmErr}
			}
			return final, nil
		}
		_ = os.Remove(final)
	}
	return "", &MoveError{Src: src, Dst: final, Err: last}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	// 修改时间照搬源文件；失败不影响移动结果。
	_ = os.Chtimes(dst, time.Now(), fi.ModTime())
	return nil
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），
// 覆盖同名文件。用于 plan/report 等可重写的文档。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeFileAtomic(dir, name, data, 0o644)
}

// writeFileAtomic 的要点：
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 临时文件做 Sync；目录 Sync 采用 best-effort（平台差异大）
func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 创建同目录临时文件（前缀带 '.'，避免污染媒体库视图）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// rename 原子替换到最终文件名。
	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)

	// rename 成功后，不应删除最终文件。
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

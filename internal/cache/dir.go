package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName 为默认缓存目录名，挂在 SNAP_USER_COMMON 或用户主目录下。
	DefaultDirName = ".ust_cache"

	// SnapCommonEnv 指向 snap 沙箱中各版本共享的可写目录。
	SnapCommonEnv = "SNAP_USER_COMMON"
)

// ResolveDir 计算缓存目录：显式参数优先，其次 $SNAP_USER_COMMON/.ust_cache，
// 最后是用户主目录下的 .ust_cache。返回值总是绝对路径。
func ResolveDir(explicit string) (string, error) {
	dir := explicit
	if dir == "" {
		if snap := os.Getenv(SnapCommonEnv); snap != "" {
			dir = filepath.Join(snap, DefaultDirName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			dir = filepath.Join(home, DefaultDirName)
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return abs, nil
}

// ensureDir 确保 dir 是目录：已存在的普通文件返回 PathConflictError，缺失时连同父目录一起创建。
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return &PathConflictError{Path: dir}
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("stat cache directory: %w", err)
	}
}

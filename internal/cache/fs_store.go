package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// fileStore 管理 <cache_dir>/<id> 产物文件，所有写入都通过临时文件 + rename 完成，
// 读者不会看到写了一半的文件。
type fileStore struct {
	basePath string
}

func newFileStore(basePath string) *fileStore {
	return &fileStore{basePath: basePath}
}

// Put 将 body 写入 basePath/<id> 并返回绝对路径。
func (s *fileStore) Put(ctx context.Context, id string, body io.Reader) (string, error) {
	filePath, err := s.path(id)
	if err != nil {
		return "", err
	}
	if err := s.writeAtomic(ctx, filePath, body); err != nil {
		return "", err
	}
	return filePath, nil
}

// Replace 用 body 原子覆盖已有文件；失败时原文件保持不变。
func (s *fileStore) Replace(ctx context.Context, filePath string, body io.Reader) error {
	return s.writeAtomic(ctx, filePath, body)
}

// Header 读取文件开头至多 n 个字节，文件较短时返回实际读到的内容。
func (s *fileStore) Header(filePath string, n int) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:read], nil
}

// Remove 删除产物文件，文件本就不存在时视为成功。
func (s *fileStore) Remove(filePath string) error {
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) writeAtomic(ctx context.Context, filePath string, body io.Reader) error {
	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, body)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (s *fileStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid artifact id %q", id)
	}
	return filepath.Join(s.basePath, id), nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

// Package codec 封装缓存支持的唯一压缩格式 bzip2。识别只看文件头两个字节，
// 编解码交给 github.com/mholt/archives。
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mholt/archives"
)

// Bzip2Magic 为 bzip2 流的固定前缀。
var Bzip2Magic = []byte("BZ")

// Bzip2 实现 cache.Decompressor。
type Bzip2 struct {
	format archives.Bz2
}

// NewBzip2 返回使用默认压缩级别的 bzip2 编解码器。
func NewBzip2() *Bzip2 {
	return &Bzip2{}
}

// Detect 判断文件头是否为 bzip2 魔数。
func (b *Bzip2) Detect(header []byte) bool {
	return len(header) >= len(Bzip2Magic) && bytes.Equal(header[:len(Bzip2Magic)], Bzip2Magic)
}

// Decompress 返回解压后的流，调用方负责关闭。
func (b *Bzip2) Decompress(r io.Reader) (io.ReadCloser, error) {
	rc, err := b.format.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open bzip2 stream: %w", err)
	}
	return rc, nil
}

// Compress 将 data 压缩为 bzip2，供工具与测试构造产物。
func (b *Bzip2) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := b.format.OpenWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("open bzip2 writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("write bzip2 stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close bzip2 stream: %w", err)
	}
	return buf.Bytes(), nil
}

package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// IndexFileName 为缓存目录下持久化索引的文件名。
const IndexFileName = "file_cache.json"

// loadIndex 整体读取索引文件。文件不存在时返回空索引；其余失败均为 LoadError。
func loadIndex(path string) (map[string]Entry, error) {
	entries := make(map[string]Entry)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, &LoadError{Path: path, Reason: "unable to read index", Err: err}
	}

	var raw map[string]map[string]interface{}
	if err := decodeJSON(bytes.NewReader(data), &raw); err != nil {
		return nil, &LoadError{Path: path, Reason: describeSyntaxError(err)}
	}

	for url, fields := range raw {
		entry, err := EntryFromMap(fields)
		if err != nil {
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("entry %q", url), Err: err}
		}
		// 索引以 map key 为准，url 字段只做必填校验
		entry.URL = url
		entries[url] = entry
	}
	return entries, nil
}

// errTrailingData 表示首个 JSON 值之后仍有非空白内容。
var errTrailingData = errors.New("trailing data after top-level value")

// decodeJSON 以 UseNumber 解码唯一一个顶层 JSON 值，其后只允许空白。
func decodeJSON(r io.Reader, v interface{}) error {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

// describeSyntaxError 将 JSON 解析错误整理为可读的描述。
func describeSyntaxError(err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("file contains malformed JSON at offset %d: %v", syntaxErr.Offset, syntaxErr)
	}
	if errors.Is(err, errTrailingData) {
		return "file contains malformed JSON: trailing data"
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("file contains malformed JSON: unexpected %s at offset %d", typeErr.Value, typeErr.Offset)
	}
	return fmt.Sprintf("file contains malformed JSON: %v", err)
}

// saveIndex 以 4 空格缩进整体重写索引，写入复用 fileStore 的临时文件 + rename。
func saveIndex(ctx context.Context, files *fileStore, path string, entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	data = append(data, '\n')

	if err := files.Replace(ctx, path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write index %s: %w", filepath.Base(path), err)
	}
	return nil
}

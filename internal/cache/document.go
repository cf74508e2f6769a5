package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoMetadata 表示产物顶层缺少 metadata 段。
var ErrNoMetadata = errors.New("artifact has no metadata section")

// Metadata 为产物内嵌的缓存控制信息。
type Metadata struct {
	Timestamp int64 `json:"timestamp"`
	TTL       int64 `json:"ttl"`
}

// Document 为解析后的产物内容，数值保留为 json.Number 以免丢失精度。
type Document map[string]interface{}

// Metadata 提取并校验 metadata.timestamp 与 metadata.ttl。
func (d Document) Metadata() (Metadata, error) {
	raw, ok := d["metadata"]
	if !ok {
		return Metadata{}, ErrNoMetadata
	}
	section, ok := raw.(map[string]interface{})
	if !ok {
		return Metadata{}, fmt.Errorf("metadata must be an object, got %T", raw)
	}

	timestamp, err := integerField(section, "timestamp")
	if err != nil {
		return Metadata{}, err
	}
	ttl, err := integerField(section, "ttl")
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Timestamp: timestamp, TTL: ttl}, nil
}

func integerField(section map[string]interface{}, key string) (int64, error) {
	raw, ok := section[key]
	if !ok {
		return 0, fmt.Errorf("metadata missing key '%s'", key)
	}
	number, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("metadata.%s must be a number, got %T", key, raw)
	}
	value, err := number.Int64()
	if err != nil {
		return 0, fmt.Errorf("metadata.%s must be an integer: %w", key, err)
	}
	return value, nil
}

// Get 解析 url 并返回本地文件的结构化内容。
func (s *Store) Get(ctx context.Context, url string) (Document, error) {
	var doc Document
	if err := s.GetInto(ctx, url, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetInto 解析 url 并把本地文件内容解码到 v。
func (s *Store) GetInto(ctx context.Context, url string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.resolveLocked(ctx, url)
	if err != nil {
		return err
	}
	if err := decodeFile(res.Entry.Path, v); err != nil {
		return fmt.Errorf("read cached %s: %w", url, err)
	}
	return nil
}

func readMetadata(path string) (Metadata, error) {
	var doc Document
	if err := decodeFile(path, &doc); err != nil {
		return Metadata{}, err
	}
	if doc == nil {
		return Metadata{}, errors.New("artifact is not a JSON object")
	}
	return doc.Metadata()
}

func decodeFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return decodeJSON(f, v)
}

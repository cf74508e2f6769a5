package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// entryKeys 为索引中每个条目必须出现的字段，顺序决定缺失字段的报告优先级。
var entryKeys = []string{"url", "path", "timestamp", "ttl"}

// Entry 描述一个已缓存的下载产物。构造后不再修改。
type Entry struct {
	URL       string `json:"url" mapstructure:"url"`
	Path      string `json:"path" mapstructure:"path"`
	Timestamp int64  `json:"timestamp" mapstructure:"timestamp"`
	TTL       int64  `json:"ttl" mapstructure:"ttl"`
}

// NewEntry 直接由四个字段构造条目。
func NewEntry(url, path string, timestamp, ttl int64) Entry {
	return Entry{
		URL:       url,
		Path:      path,
		Timestamp: timestamp,
		TTL:       ttl,
	}
}

// EntryFromMap 从反序列化后的索引字段构造条目，缺少任一字段时返回 MissingKeyError。
// 数值需为整数（json.Number 或整型），类型不符时返回 FieldTypeError。
func EntryFromMap(fields map[string]interface{}) (Entry, error) {
	for _, key := range entryKeys {
		value, ok := fields[key]
		if !ok {
			return Entry{}, &MissingKeyError{Key: key}
		}
		if value == nil {
			return Entry{}, &FieldTypeError{Err: fmt.Errorf("'%s' must not be null", key)}
		}
	}

	var entry Entry
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &entry,
		TagName:          "mapstructure",
		WeaklyTypedInput: false,
		DecodeHook:       strictNumberHook(),
	})
	if err != nil {
		return Entry{}, err
	}
	if err := decoder.Decode(fields); err != nil {
		return Entry{}, &FieldTypeError{Err: err}
	}
	return entry, nil
}

// IsExpired 以当前墙钟时间判断条目是否过期，每次调用都会重新计算。
func (e Entry) IsExpired() bool {
	return e.ExpiredAt(time.Now())
}

// ExpiredAt 判断在 now 时刻条目是否过期。恰好等于 TTL 时仍视为有效（严格大于才过期）。
func (e Entry) ExpiredAt(now time.Time) bool {
	return e.Age(now) > e.TTL
}

// Age 返回 now 相对于产物元数据时间戳经过的秒数。
func (e Entry) Age(now time.Time) int64 {
	return now.Unix() - e.Timestamp
}

// ExpiresAt 返回条目最后一个仍然有效的时刻。
func (e Entry) ExpiresAt() time.Time {
	return time.Unix(e.Timestamp+e.TTL, 0).UTC()
}

// strictNumberHook 阻止 json.Number 被当作字符串写入 url/path 字段。
func strictNumberHook() mapstructure.DecodeHookFunc {
	numberType := reflect.TypeOf(json.Number(""))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from == numberType && to.Kind() == reflect.String {
			return nil, fmt.Errorf("expected string, got number %v", data)
		}
		return data, nil
	}
}

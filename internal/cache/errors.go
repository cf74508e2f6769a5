package cache

import (
	"errors"
	"fmt"
)

// MissingKeyError 表示索引条目缺少必需字段。
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing key '%s'", e.Key)
}

// FieldTypeError 表示索引条目字段存在但类型不符。
type FieldTypeError struct {
	Err error
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("invalid field: %v", e.Err)
}

func (e *FieldTypeError) Unwrap() error { return e.Err }

// LoadError 在构造 Store 时读取索引失败返回，Store 实例不可用。
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to load file cache %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("failed to load file cache %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PathConflictError 表示缓存目录路径已存在但不是目录。
type PathConflictError struct {
	Path string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("%s exists, but is not a directory", e.Path)
}

// DownloadError 表示拉取 URL 失败（传输错误或非成功状态码），仅影响本次调用。
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError 表示解压失败；未解压的文件保留在磁盘上。
type ExtractionError struct {
	URL  string
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s (from %s) failed: %v", e.Path, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// MetadataError 表示产物缺少 metadata 段或内容无法解析；对应文件在返回前已删除。
type MetadataError struct {
	URL    string
	Reason string
	Err    error
}

func (e *MetadataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid metadata in %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("invalid metadata in %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// ErrorKind 将错误映射为稳定的字符串，供日志字段与 HTTP 响应体使用。
func ErrorKind(err error) string {
	var (
		loadErr       *LoadError
		conflictErr   *PathConflictError
		downloadErr   *DownloadError
		extractionErr *ExtractionError
		metadataErr   *MetadataError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &loadErr):
		return "load_failed"
	case errors.As(err, &conflictErr):
		return "path_conflict"
	case errors.As(err, &downloadErr):
		return "download_failed"
	case errors.As(err, &extractionErr):
		return "extraction_failed"
	case errors.As(err, &metadataErr):
		return "metadata_invalid"
	default:
		return "internal_error"
	}
}

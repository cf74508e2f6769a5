package cache

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ust-cache/ust-cache/internal/codec"
)

//go:generate mockgen -destination=mocks/fetcher.go -package=mocks . Fetcher

// Fetcher 拉取 URL 对应的完整字节。要么返回全部内容，要么返回错误且不留下任何数据。
// 非成功状态码需要在错误信息中带上数字状态码。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Decompressor 识别并解压单一压缩格式。Detect 只检查文件开头的魔数。
type Decompressor interface {
	Detect(header []byte) bool
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// headerSize 为压缩格式识别时读取的文件头长度。
const headerSize = 2

// State 描述一次请求到达时 URL 所处的缓存状态，同时作为日志中的 state 字段。
type State string

const (
	StateUncached      State = "uncached"
	StateCachedValid   State = "cached_valid"
	StateCachedExpired State = "cached_expired"
	StateFetching      State = "fetching"
)

// Resolution 汇总一次解析的结果：最终条目以及请求到达时的状态。
type Resolution struct {
	Entry Entry
	State State
}

// Hit 表示结果直接来自本地缓存，没有触发下载。
func (r Resolution) Hit() bool {
	return r.State == StateCachedValid
}

// Options 控制 Store 的构造。除 Fetcher 外均可留空以使用默认值。
type Options struct {
	// Dir 为显式指定的缓存目录，留空时按 ResolveDir 的规则推导。
	Dir          string
	Fetcher      Fetcher
	Decompressor Decompressor
	Logger       *logrus.Logger
	Now          func() time.Time
	NewID        func() string
}

// Store 持有缓存目录、内存索引以及读取/拉取协议。公开方法之间互斥执行。
type Store struct {
	dir       string
	indexPath string
	files     *fileStore
	fetcher   Fetcher
	codec     Decompressor
	logger    *logrus.Logger
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	entries map[string]Entry
}

// New 创建缓存目录（如有需要）并完整加载索引。任何加载失败都会使构造失败，
// 不会退化为空缓存。
func New(opts Options) (*Store, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher required")
	}

	dir, err := ResolveDir(opts.Dir)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	indexPath := filepath.Join(dir, IndexFileName)
	entries, err := loadIndex(indexPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:       dir,
		indexPath: indexPath,
		files:     newFileStore(dir),
		fetcher:   opts.Fetcher,
		codec:     opts.Decompressor,
		logger:    opts.Logger,
		now:       opts.Now,
		newID:     opts.NewID,
		entries:   entries,
	}
	if s.codec == nil {
		s.codec = codec.NewBzip2()
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	s.logger.WithFields(logrus.Fields{
		"action":    "cache_open",
		"cache_dir": dir,
		"entries":   len(entries),
	}).Debug("cache_loaded")
	return s, nil
}

// Dir 返回缓存目录的绝对路径。
func (s *Store) Dir() string {
	return s.dir
}

// IndexPath 返回持久化索引文件路径。
func (s *Store) IndexPath() string {
	return s.indexPath
}

// Lookup 只查询内存索引，不做过期判断也不触发下载。
func (s *Store) Lookup(url string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[url]
	return entry, ok
}

// Entries 返回按 URL 排序的索引快照。
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].URL < result[j].URL
	})
	return result
}

// Now 返回 Store 使用的时钟读数，供上层与过期判断保持一致。
func (s *Store) Now() time.Time {
	return s.now()
}

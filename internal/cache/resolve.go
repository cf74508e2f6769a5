package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ust-cache/ust-cache/internal/logging"
)

// Resolve 返回 url 对应的本地文件路径，必要时下载并写入索引。
func (s *Store) Resolve(ctx context.Context, url string) (string, error) {
	res, err := s.ResolveEntry(ctx, url)
	if err != nil {
		return "", err
	}
	return res.Entry.Path, nil
}

// ResolveEntry 与 Resolve 相同，额外返回请求到达时的缓存状态。
func (s *Store) ResolveEntry(ctx context.Context, url string) (Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(ctx, url)
}

func (s *Store) resolveLocked(ctx context.Context, url string) (Resolution, error) {
	entry, ok := s.entries[url]
	if !ok {
		s.log(url, StateUncached).Debug("cache_miss")
		fresh, err := s.fetchAndStore(ctx, url)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Entry: fresh, State: StateUncached}, nil
	}

	now := s.now()
	if !entry.ExpiredAt(now) {
		s.log(url, StateCachedValid).WithField("path", entry.Path).Debug("cache_hit")
		return Resolution{Entry: entry, State: StateCachedValid}, nil
	}

	s.log(url, StateCachedExpired).WithFields(logrus.Fields{
		"path": entry.Path,
		"age":  entry.Age(now),
		"ttl":  entry.TTL,
	}).Info("cache_expired")

	if err := s.evict(url, entry); err != nil {
		return Resolution{}, err
	}
	fresh, err := s.fetchAndStore(ctx, url)
	if err != nil {
		// 旧文件已删除，必须落盘一次，磁盘索引不能指向不存在的文件。
		if saveErr := s.save(ctx); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
		return Resolution{}, err
	}
	return Resolution{Entry: fresh, State: StateCachedExpired}, nil
}

// evict 删除过期条目的文件并按查找键从内存索引移除，持久化由调用方负责。
func (s *Store) evict(key string, entry Entry) error {
	if err := s.files.Remove(entry.Path); err != nil {
		return fmt.Errorf("evict %s: %w", key, err)
	}
	delete(s.entries, key)
	return nil
}

// fetchAndStore 下载 → 按需解压 → 提取元数据 → 写索引并落盘。
func (s *Store) fetchAndStore(ctx context.Context, url string) (Entry, error) {
	id := s.newID()
	log := s.log(url, StateFetching).WithField("id", id)
	log.Info("cache_fetch")

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		log.WithError(err).Warn("cache_fetch_failed")
		return Entry{}, &DownloadError{URL: url, Err: err}
	}

	path, err := s.files.Put(ctx, id, bytes.NewReader(data))
	if err != nil {
		log.WithError(err).Warn("cache_write_failed")
		return Entry{}, &DownloadError{URL: url, Err: fmt.Errorf("write artifact: %w", err)}
	}

	if err := s.extract(ctx, path); err != nil {
		log.WithError(err).WithField("path", path).Warn("cache_extract_failed")
		return Entry{}, &ExtractionError{URL: url, Path: path, Err: err}
	}

	meta, err := readMetadata(path)
	if err != nil {
		metaErr := error(&MetadataError{URL: url, Reason: "unable to read metadata", Err: err})
		if rmErr := s.files.Remove(path); rmErr != nil {
			metaErr = errors.Join(metaErr, fmt.Errorf("remove %s: %w", path, rmErr))
		}
		log.WithError(err).Warn("cache_metadata_invalid")
		return Entry{}, metaErr
	}

	entry := NewEntry(url, path, meta.Timestamp, meta.TTL)
	s.entries[url] = entry
	if err := s.save(ctx); err != nil {
		return Entry{}, err
	}

	log.WithFields(logrus.Fields{
		"path":      path,
		"timestamp": entry.Timestamp,
		"ttl":       entry.TTL,
	}).Info("cache_stored")
	return entry, nil
}

// extract 文件头匹配压缩格式时原地解压：先写临时文件，成功后再 rename 覆盖。
func (s *Store) extract(ctx context.Context, path string) error {
	header, err := s.files.Header(path, headerSize)
	if err != nil {
		return err
	}
	if !s.codec.Detect(header) {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, err := s.codec.Decompress(f)
	if err != nil {
		return err
	}
	defer reader.Close()

	return s.files.Replace(ctx, path, reader)
}

func (s *Store) save(ctx context.Context) error {
	if err := saveIndex(context.WithoutCancel(ctx), s.files, s.indexPath, s.entries); err != nil {
		s.logger.WithError(err).WithField("path", s.indexPath).Error("cache_index_save_failed")
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

func (s *Store) log(url string, state State) *logrus.Entry {
	return s.logger.WithFields(logging.CacheFields(url, string(state)))
}

package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ust-cache/ust-cache/internal/cache"
	"github.com/ust-cache/ust-cache/internal/config"
	"github.com/ust-cache/ust-cache/internal/fetch"
	"github.com/ust-cache/ust-cache/internal/logging"
	"github.com/ust-cache/ust-cache/internal/version"
)

// runtimeDeps 为子命令共享的运行时依赖。
type runtimeDeps struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  *cache.Store
}

// openRuntime 遵循“配置 → 日志 → HTTP client → 缓存”的顺序初始化。
func openRuntime(opts *cliOptions) (*runtimeDeps, error) {
	configPath := opts.configPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if opts.cacheDir != "" {
		cfg.CacheDir = opts.cacheDir
	}
	if opts.logLevel != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(opts.logLevel))
		if err := cfg.Validate(); err != nil {
			return nil, usageError{fmt.Errorf("--log-level: %w", err)}
		}
	}

	logger, err := logging.InitLogger(*cfg, stdErr)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	fetcher := fetch.New(fetch.NewHTTPClient(cfg), cfg.UserAgent).WithMaxBytes(cfg.MaxArtifactSize)
	store, err := cache.New(cache.Options{
		Dir:     cfg.CacheDir,
		Fetcher: fetcher,
		Logger:  logger,
	})
	if err != nil {
		logger.WithFields(logging.BaseFields("startup", configPath)).
			WithField("kind", cache.ErrorKind(err)).
			WithError(err).Error("cache_open_failed")
		return nil, err
	}

	fields := logging.BaseFields("startup", configPath)
	fields["cache_dir"] = store.Dir()
	fields["version"] = version.Full()
	logger.WithFields(fields).Debug("缓存加载完成")

	return &runtimeDeps{cfg: cfg, logger: logger, store: store}, nil
}

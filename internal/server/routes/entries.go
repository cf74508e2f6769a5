package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/ust-cache/ust-cache/internal/cache"
	"github.com/ust-cache/ust-cache/internal/server"
)

// RegisterCacheRoutes 暴露 /-/entries 与 /-/resolve 诊断接口，供运维查询索引与解析结果。
func RegisterCacheRoutes(app *fiber.App, store server.CacheStore, logger *logrus.Logger) {
	if app == nil || store == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/-/entries", func(c fiber.Ctx) error {
		payload := entriesPayload{
			CacheDir: store.Dir(),
			Entries:  encodeEntries(store.Entries(), store.Now()),
		}
		return c.JSON(payload)
	})

	app.Get("/-/resolve", func(c fiber.Ctx) error {
		rawURL, ok := server.QueryURL(c)
		if !ok {
			return server.RenderURLRequired(c)
		}
		res, err := store.ResolveEntry(c.Context(), rawURL)
		if err != nil {
			return server.RenderCacheError(c, logger, rawURL, err)
		}
		server.SetCacheState(c, res.State)
		return c.JSON(resolvePayload{
			URL:   res.Entry.URL,
			Path:  res.Entry.Path,
			State: string(res.State),
		})
	})
}

type entriesPayload struct {
	CacheDir string         `json:"cache_dir"`
	Entries  []entryPayload `json:"entries"`
}

type entryPayload struct {
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	Timestamp int64     `json:"timestamp"`
	TTL       int64     `json:"ttl"`
	Expired   bool      `json:"expired"`
	ExpiresAt time.Time `json:"expires_at"`
}

type resolvePayload struct {
	URL   string `json:"url"`
	Path  string `json:"path"`
	State string `json:"state"`
}

// encodeEntries 保持 Store.Entries 的 URL 顺序，空索引编码为 []。
func encodeEntries(entries []cache.Entry, now time.Time) []entryPayload {
	result := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entryPayload{
			URL:       entry.URL,
			Path:      entry.Path,
			Timestamp: entry.Timestamp,
			TTL:       entry.TTL,
			Expired:   entry.ExpiredAt(now),
			ExpiresAt: entry.ExpiresAt(),
		})
	}
	return result
}

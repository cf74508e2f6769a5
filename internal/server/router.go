package server

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ust-cache/ust-cache/internal/cache"
	"github.com/ust-cache/ust-cache/internal/logging"
)

// CacheStore is the subset of *cache.Store the HTTP surface needs. It allows
// injecting fake stores during tests.
type CacheStore interface {
	Dir() string
	Entries() []cache.Entry
	Now() time.Time
	ResolveEntry(ctx context.Context, url string) (cache.Resolution, error)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
	Store  CacheStore
}

const (
	contextKeyRequestID  = "_ustcache_request_id"
	contextKeyCacheState = "_ustcache_state"

	// HeaderCacheState 回传请求到达时的缓存状态。
	HeaderCacheState = "X-Ust-Cache-State"
)

// NewApp builds a Fiber application with request-ID middleware, access
// logging and the /fetch handler.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	app.Get("/fetch", fetchHandler(opts))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		entry := logger.WithFields(logging.RequestFields(reqID, c.Method(), c.Path(), status, CacheState(c))).
			WithField("elapsed_ms", time.Since(started).Milliseconds())
		if err != nil {
			entry.WithError(err).Warn("request_failed")
		} else {
			entry.Debug("request")
		}
		return err
	}
}

// fetchHandler 解析 url 后把缓存文件原样返回。
func fetchHandler(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		rawURL, ok := QueryURL(c)
		if !ok {
			return RenderURLRequired(c)
		}

		res, err := opts.Store.ResolveEntry(requestContext(c), rawURL)
		if err != nil {
			return RenderCacheError(c, opts.Logger, rawURL, err)
		}
		SetCacheState(c, res.State)

		f, err := os.Open(res.Entry.Path)
		if err != nil {
			return RenderCacheError(c, opts.Logger, rawURL, err)
		}
		defer f.Close()

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		c.Set(HeaderCacheState, string(res.State))
		c.Status(fiber.StatusOK)
		if c.Method() == fiber.MethodHead {
			return nil
		}
		if _, err := io.Copy(c.Response().BodyWriter(), f); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "read cache failed: "+err.Error())
		}
		return nil
	}
}

// QueryURL 读取并裁剪 url 查询参数。
func QueryURL(c fiber.Ctx) (string, bool) {
	raw := strings.TrimSpace(c.Query("url"))
	return raw, raw != ""
}

// RenderURLRequired 返回 400 url_required。
func RenderURLRequired(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_required"})
}

// RenderCacheError 将缓存错误映射为 502 + 稳定的错误码；非缓存错误返回 500。
func RenderCacheError(c fiber.Ctx, logger *logrus.Logger, url string, err error) error {
	kind := cache.ErrorKind(err)
	status := fiber.StatusBadGateway
	if kind == "internal_error" {
		status = fiber.StatusInternalServerError
	}

	logger.WithFields(logrus.Fields{
		"action":     "cache_error",
		"url":        url,
		"kind":       kind,
		"request_id": RequestID(c),
	}).WithError(err).Warn("cache request failed")

	return c.Status(status).JSON(fiber.Map{"error": kind})
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// CacheState returns the cache state recorded for this request, if any.
func CacheState(c fiber.Ctx) string {
	if value := c.Locals(contextKeyCacheState); value != nil {
		if state, ok := value.(string); ok {
			return state
		}
	}
	return ""
}

// SetCacheState records the cache state so the access log can report it.
func SetCacheState(c fiber.Ctx, state cache.State) {
	c.Locals(contextKeyCacheState, string(state))
}

// Package server hosts the Fiber HTTP surface that fronts a cache.Store.
// NewApp attaches the recover and request-ID middlewares and mounts the
// /fetch handler that serves cached artifacts; read-only diagnostics under
// /-/ live in the routes subpackage. Every handler depends on the narrow
// CacheStore interface so tests can inject fakes, and the package never owns
// the store lifecycle: callers open the store and pass it in.
package server

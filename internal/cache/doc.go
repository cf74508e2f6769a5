// Package cache implements the URL-keyed download cache. Artifacts live as
// <cache_dir>/<uuid> files and are tracked by a JSON index
// (<cache_dir>/file_cache.json) that is loaded once when the Store is built and
// rewritten in full after every mutation. Freshness is driven by the
// timestamp/ttl pair embedded in each downloaded artifact, never by file
// modification times. Expired entries are evicted lazily, on access, right
// before the replacement is fetched.
//
// Transport and decompression are injected through the Fetcher and
// Decompressor interfaces so the engine can be exercised without the network.
package cache

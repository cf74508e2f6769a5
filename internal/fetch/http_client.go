package fetch

import (
	"net"
	"net/http"
	"time"

	"github.com/ust-cache/ust-cache/internal/config"
)

// DefaultTimeout 在配置缺失或为 0 时使用。
const DefaultTimeout = 30 * time.Second

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          32,
	MaxIdleConnsPerHost:   8,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewHTTPClient 返回带 FetchTimeout 的 http.Client，供缓存下载复用。
func NewHTTPClient(cfg *config.Config) *http.Client {
	timeout := DefaultTimeout
	if cfg != nil && cfg.FetchTimeout.DurationValue() > 0 {
		timeout = cfg.FetchTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

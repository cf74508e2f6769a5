// Package fetch 负责把 URL 下载为字节，支持 http/https 与本地 file:// 地址。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedScheme 表示 URL 协议既不是 http(s) 也不是 file。
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// DefaultMaxBytes 为单个产物允许的最大字节数。
const DefaultMaxBytes int64 = 256 << 20

// TooLargeError 表示产物超过 Client 的大小上限。
type TooLargeError struct {
	URL   string
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("artifact exceeds size limit of %d bytes", e.Limit)
}

// StatusError 描述上游返回的非 200 状态码。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Client 实现 cache.Fetcher。
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
}

// New 创建 Client；httpClient 为空时使用默认超时的共享 client。
func New(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(nil)
	}
	return &Client{http: httpClient, userAgent: userAgent, maxBytes: DefaultMaxBytes}
}

// WithMaxBytes 设置单个产物的大小上限，n <= 0 时恢复 DefaultMaxBytes。
func (c *Client) WithMaxBytes(n int64) *Client {
	if n <= 0 {
		n = DefaultMaxBytes
	}
	c.maxBytes = n
	return c
}

// Fetch 读取 rawURL 的完整内容。
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return c.fetchHTTP(ctx, rawURL)
	case "file":
		return c.fetchFile(ctx, rawURL, parsed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
}

func (c *Client) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 读空 body 以便连接复用
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > c.maxBytes {
		return nil, &TooLargeError{URL: rawURL, Limit: c.maxBytes}
	}
	body, err := c.readLimited(rawURL, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// readLimited 最多读取 maxBytes 字节，多读一个字节用于判断是否超限。
func (c *Client) readLimited(rawURL string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBytes {
		return nil, &TooLargeError{URL: rawURL, Limit: c.maxBytes}
	}
	return data, nil
}

func (c *Client) fetchFile(ctx context.Context, rawURL string, u *url.URL) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if u.Host != "" && u.Host != "localhost" {
		return nil, fmt.Errorf("%w: file url with host %q", ErrUnsupportedScheme, u.Host)
	}
	path := u.Path
	if path == "" {
		// file:relative 形式
		path = u.Opaque
	}
	f, err := os.Open(filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("read local file: %w", err)
	}
	defer f.Close()

	data, err := c.readLimited(rawURL, f)
	if err != nil {
		return nil, fmt.Errorf("read local file: %w", err)
	}
	return data, nil
}

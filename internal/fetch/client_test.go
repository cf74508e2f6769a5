package fetch

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHTTPReturnsBody(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"metadata":{"timestamp":1,"ttl":2}}`))
	}))
	defer srv.Close()

	client := New(srv.Client(), "ust-cache/test")
	body, err := client.Fetch(context.Background(), srv.URL+"/1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{"timestamp":1,"ttl":2}}`, string(body))
	assert.Equal(t, "ust-cache/test", gotUA)
}

func TestFetchHTTPNon200(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.Client(), "").Fetch(context.Background(), srv.URL+"/missing.json")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchHTTPTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	httpClient := srv.Client()
	httpClient.Timeout = 50 * time.Millisecond

	_, err := New(httpClient, "").Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestFetchHTTPHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.Client(), "").Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchFileURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	body, err := New(nil, "").Fetch(context.Background(), "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))
}

func TestFetchFileURLMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.json")
	_, err := New(nil, "").Fetch(context.Background(), "file://"+filepath.ToSlash(missing))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestFetchUnsupportedScheme(t *testing.T) {
	for _, raw := range []string{"ftp://example.com/a.json", "a.json", "file://remote-host/a.json"} {
		_, err := New(nil, "").Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, ErrUnsupportedScheme, raw)
	}
}

func TestFetchHTTPRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"metadata":{"timestamp":1,"ttl":2}}`))
	}))
	defer srv.Close()

	_, err := New(srv.Client(), "").WithMaxBytes(8).Fetch(context.Background(), srv.URL)
	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(8), tooLarge.Limit)
}

func TestFetchHTTPRejectsOversizedChunkedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 4; i++ {
			_, _ = w.Write([]byte("0123456789"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	_, err := New(srv.Client(), "").WithMaxBytes(16).Fetch(context.Background(), srv.URL)
	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestFetchBodyAtLimitSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("12345678"))
	}))
	defer srv.Close()

	body, err := New(srv.Client(), "").WithMaxBytes(8).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(body))
}

func TestFetchFileURLRespectsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	_, err := New(nil, "").WithMaxBytes(32).Fetch(context.Background(), "file://"+filepath.ToSlash(path))
	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestWithMaxBytesNonPositiveUsesDefault(t *testing.T) {
	client := New(nil, "").WithMaxBytes(0)
	assert.Equal(t, DefaultMaxBytes, client.maxBytes)
}

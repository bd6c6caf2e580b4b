package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"caching-balancer/lru"
)

// backend is a test application that counts the requests it serves.
type backend struct {
	*httptest.Server
	calls atomic.Int32
}

func newBackend(t *testing.T, h http.HandlerFunc) *backend {
	t.Helper()

	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			b.calls.Add(1)
			h(w, r)
		},
	))
	t.Cleanup(b.Close)

	return b
}

func (b *backend) application(t *testing.T) Application {
	t.Helper()

	host, port, err := net.SplitHostPort(b.Listener.Addr().String())
	require.NoError(t, err)

	return Application{IP: host, Port: port, Alive: true}
}

func newTestProxy(t *testing.T, capacity int,
	backends ...*backend) *Proxy {

	t.Helper()

	apps := make([]Application, 0, len(backends))
	for _, b := range backends {
		apps = append(apps, b.application(t))
	}

	var cache *lru.SyncCache[string, *CachedResponse]
	if capacity > 0 {
		var err error
		cache, err = lru.NewSync[string, *CachedResponse](capacity)
		require.NoError(t, err)
	}

	return NewProxy(NewPool(apps), cache, nil)
}

func doRequest(p *Proxy, method, path string, body io.Reader,
	header http.Header) *httptest.ResponseRecorder {

	r := httptest.NewRequest(method, path, body)
	for k, v := range header {
		r.Header[k] = v
	}
	w := httptest.NewRecorder()
	p.ServeHTTP(w, r)

	return w
}

func echoPath(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Backend", "yes")
	_, _ = fmt.Fprintf(w, "path=%s", r.URL.Path)
}

func TestProxyCachesGet(t *testing.T) {
	b := newBackend(t, echoPath)
	p := newTestProxy(t, 10, b)

	w := doRequest(p, http.MethodGet, "/a", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "MISS", w.Header().Get("X-Cache"))
	require.Equal(t, "path=/a", w.Body.String())

	w = doRequest(p, http.MethodGet, "/a", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "HIT", w.Header().Get("X-Cache"))
	require.Equal(t, "yes", w.Header().Get("X-Backend"))
	require.Equal(t, "0", w.Header().Get("Age"))
	require.Equal(t, "path=/a", w.Body.String())

	require.EqualValues(t, 1, b.calls.Load())
	require.Equal(t, lru.Stats{Hits: 1, Misses: 1}, p.cache.Stats())
}

// TestProxyEvictsLeastRecentPath checks that the response cache drops the
// path that was requested least recently.
func TestProxyEvictsLeastRecentPath(t *testing.T) {
	b := newBackend(t, echoPath)
	p := newTestProxy(t, 2, b)

	doRequest(p, http.MethodGet, "/1", nil, nil)
	doRequest(p, http.MethodGet, "/2", nil, nil)
	doRequest(p, http.MethodGet, "/1", nil, nil)
	doRequest(p, http.MethodGet, "/3", nil, nil)
	require.EqualValues(t, 3, b.calls.Load())

	w := doRequest(p, http.MethodGet, "/2", nil, nil)
	require.Equal(t, "MISS", w.Header().Get("X-Cache"))
	require.EqualValues(t, 4, b.calls.Load())

	// Fetching /2 again pushed out /1.
	require.False(t, p.cache.Contains(cacheKey("/1")))
	require.True(t, p.cache.Contains(cacheKey("/3")))
	require.Equal(t, 2, p.cache.Len())
}

func TestProxyExpiresResponses(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=10")
		_, _ = io.WriteString(w, "fresh")
	})
	p := newTestProxy(t, 4, b)

	now := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return now }

	doRequest(p, http.MethodGet, "/x", nil, nil)

	now = now.Add(5 * time.Second)
	w := doRequest(p, http.MethodGet, "/x", nil, nil)
	require.Equal(t, "HIT", w.Header().Get("X-Cache"))
	require.Equal(t, "5", w.Header().Get("Age"))

	now = now.Add(6 * time.Second)
	w = doRequest(p, http.MethodGet, "/x", nil, nil)
	require.Equal(t, "MISS", w.Header().Get("X-Cache"))
	require.EqualValues(t, 2, b.calls.Load())
	require.Equal(t, 1, p.cache.Len())

	// Only the fresh replay counts as a hit; the stale one is a miss.
	require.Equal(t, lru.Stats{Hits: 1, Misses: 2}, p.cache.Stats())
}

// TestProxyKeysOnQuery checks that requests differing only in their query
// get separate cache entries.
func TestProxyKeysOnQuery(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "q=%s", r.URL.RawQuery)
	})
	p := newTestProxy(t, 4, b)

	w := doRequest(p, http.MethodGet, "/a?x=1", nil, nil)
	require.Equal(t, "q=x=1", w.Body.String())

	w = doRequest(p, http.MethodGet, "/a?x=2", nil, nil)
	require.Equal(t, "MISS", w.Header().Get("X-Cache"))
	require.Equal(t, "q=x=2", w.Body.String())

	w = doRequest(p, http.MethodGet, "/a?x=1", nil, nil)
	require.Equal(t, "HIT", w.Header().Get("X-Cache"))
	require.Equal(t, "q=x=1", w.Body.String())

	require.EqualValues(t, 2, b.calls.Load())
	require.Equal(t, 2, p.cache.Len())
}

func TestProxyDefaultClientTimeout(t *testing.T) {
	p := NewProxy(NewPool([]Application{{IP: "a"}}), nil, nil)
	require.Equal(t, defaultBackendTimeout, p.client.Timeout)
}

// TestProxyBackendTimeout checks that a hung backend turns into a 502 once
// the client gives up.
func TestProxyBackendTimeout(t *testing.T) {
	release := make(chan struct{})
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	p := NewProxy(
		NewPool([]Application{b.application(t)}), nil,
		&http.Client{Timeout: 50 * time.Millisecond},
	)

	w := doRequest(p, http.MethodGet, "/slow", nil, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProxyBypass(t *testing.T) {
	b := newBackend(t, echoPath)

	t.Run("client no-store", func(t *testing.T) {
		p := newTestProxy(t, 4, b)
		h := http.Header{"Cache-Control": {"no-store"}}

		w := doRequest(p, http.MethodGet, "/a", nil, h)
		require.Equal(t, "BYPASS", w.Header().Get("X-Cache"))
		require.Zero(t, p.cache.Len())
	})

	t.Run("cache disabled", func(t *testing.T) {
		p := newTestProxy(t, 0, b)

		w := doRequest(p, http.MethodGet, "/a", nil, nil)
		require.Equal(t, "BYPASS", w.Header().Get("X-Cache"))
		require.Equal(t, "proxy(cache disabled)", p.String())
	})
}

func TestProxyBackendNoStore(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		_, _ = io.WriteString(w, "private")
	})
	p := newTestProxy(t, 4, b)

	doRequest(p, http.MethodGet, "/a", nil, nil)
	doRequest(p, http.MethodGet, "/a", nil, nil)
	require.EqualValues(t, 2, b.calls.Load())
	require.Zero(t, p.cache.Len())
}

func TestProxyDoesNotCacheErrors(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	p := newTestProxy(t, 4, b)

	w := doRequest(p, http.MethodGet, "/gone", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Zero(t, p.cache.Len())
}

func TestProxyPost(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, "%s %s", r.Method, body)
	})
	p := newTestProxy(t, 4, b)

	h := http.Header{"Content-Type": {"text/plain"}}
	w := doRequest(p, http.MethodPost, "/p", strings.NewReader("hi"), h)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "POST hi", w.Body.String())
	require.Empty(t, w.Header().Get("X-Cache"))
	require.Zero(t, p.cache.Len())
}

func TestProxyMethodNotAllowed(t *testing.T) {
	b := newBackend(t, echoPath)
	p := newTestProxy(t, 4, b)

	w := doRequest(p, http.MethodDelete, "/a", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Zero(t, b.calls.Load())
}

func TestProxyBadGateway(t *testing.T) {
	b := newBackend(t, echoPath)
	p := newTestProxy(t, 4, b)
	b.Close()

	w := doRequest(p, http.MethodGet, "/a", nil, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	w = doRequest(p, http.MethodPost, "/a", strings.NewReader(""), nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProxyRoundRobin(t *testing.T) {
	b1 := newBackend(t, echoPath)
	b2 := newBackend(t, echoPath)
	p := newTestProxy(t, 0, b1, b2)

	for i := 0; i < 4; i++ {
		doRequest(p, http.MethodGet, "/", nil, nil)
	}
	require.EqualValues(t, 2, b1.calls.Load())
	require.EqualValues(t, 2, b2.calls.Load())
}

package main

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"caching-balancer/lru"
)

const (
	// indefiniteTTL is used for cacheable responses that carry no max-age.
	indefiniteTTL = 24 * 365 * time.Hour

	// defaultBackendTimeout bounds a whole backend exchange when no client
	// is supplied.
	defaultBackendTimeout = 30 * time.Second
)

// CachedResponse stores the response data with expiry.
type CachedResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	StoredAt   time.Time
	ExpiresAt  time.Time
}

// IsExpired reports whether the response is stale at now.
func (c *CachedResponse) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Proxy forwards requests to the pool, answering repeated GETs from an LRU
// response cache.
type Proxy struct {
	pool   *Pool
	cache  *lru.SyncCache[string, *CachedResponse] // nil when disabled
	client *http.Client
	now    func() time.Time
}

// NewProxy returns a proxy over pool. A nil cache disables caching.
func NewProxy(pool *Pool, cache *lru.SyncCache[string, *CachedResponse],
	client *http.Client) *Proxy {

	if client == nil {
		client = &http.Client{Timeout: defaultBackendTimeout}
	}

	return &Proxy{
		pool:   pool,
		cache:  cache,
		client: client,
		now:    time.Now,
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lbalLog.Debugf("Received request: %s %s", r.Method, r.URL.Path)

	switch r.Method {
	case http.MethodGet:
		p.serveGet(w, r)
	case http.MethodPost:
		p.servePost(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (p *Proxy) serveGet(w http.ResponseWriter, r *http.Request) {
	useCache, maxAge := false, 0
	if p.cache != nil {
		useCache, maxAge = shouldCache(r)
	}
	key := cacheKey(r.URL.RequestURI())

	xCache := "BYPASS"
	if useCache {
		xCache = "MISS"

		if p.replayCached(w, r, p.lookup(key, r.URL.Path)) {
			return
		}
	} else {
		lbalLog.Debugf("Cache BYPASSED for: %s", r.URL.Path)
	}

	app := p.pool.Next()
	resource := app.URL() + r.URL.RequestURI()
	lbalLog.Debugf("Calling GET %q", resource)

	resp, err := p.client.Get(resource)
	if err != nil {
		lbalLog.Errorf("GET %s: %v", resource, err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		lbalLog.Errorf("Reading body from %s: %v", resource, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	// The backend may opt out of caching or supply the max-age.
	storable, backendMaxAge := responsePolicy(
		resp.Header.Get("Cache-Control"),
	)
	if !storable {
		useCache = false
	} else if backendMaxAge > 0 && maxAge == 0 {
		maxAge = backendMaxAge
	}

	if useCache && resp.StatusCode == http.StatusOK {
		p.store(key, resp, body, maxAge)
		lbalLog.Debugf("Cached response for: %s", r.URL.Path)
	}

	copyHeaders(w.Header(), resp.Header)
	w.Header().Set("X-Cache", xCache)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

// lookup returns the fresh cached response for key. A stale entry is
// dropped before the promoting read, so it counts as a miss.
func (p *Proxy) lookup(key, path string) fn.Option[*CachedResponse] {
	now := p.now()

	peeked := p.cache.Peek(key)
	if peeked.IsSome() && peeked.UnwrapOr(nil).IsExpired(now) {
		lbalLog.Debugf("Cache EXPIRED for: %s", path)
		p.cache.Remove(key)
	}

	cached := p.cache.Get(key)
	if cached.IsNone() {
		lbalLog.Debugf("Cache MISS for: %s", path)
	}

	return cached
}

// replayCached writes cached to w if it holds a fresh response.
func (p *Proxy) replayCached(w http.ResponseWriter, r *http.Request,
	cached fn.Option[*CachedResponse]) bool {

	if cached.IsNone() {
		return false
	}

	// Another request may have stored a response that is already stale.
	now := p.now()
	resp := cached.UnwrapOr(nil)
	if resp.IsExpired(now) {
		return false
	}

	lbalLog.Debugf("Cache HIT for: %s", r.URL.Path)

	copyHeaders(w.Header(), resp.Headers)
	age := int(now.Sub(resp.StoredAt).Seconds())
	w.Header().Set("X-Cache", "HIT")
	w.Header().Set("Age", strconv.Itoa(age))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)

	return true
}

func (p *Proxy) store(key string, resp *http.Response, body []byte,
	maxAge int) {

	now := p.now()
	ttl := indefiniteTTL
	if maxAge > 0 {
		ttl = time.Duration(maxAge) * time.Second
	}

	p.cache.Put(key, &CachedResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header.Clone(),
		StoredAt:   now,
		ExpiresAt:  now.Add(ttl),
	})
}

func (p *Proxy) servePost(w http.ResponseWriter, r *http.Request) {
	app := p.pool.Next()
	resource := app.URL() + r.URL.RequestURI()
	lbalLog.Debugf("Calling POST %q", resource)

	resp, err := p.client.Post(
		resource, r.Header.Get("Content-Type"), r.Body,
	)
	if err != nil {
		lbalLog.Errorf("POST %s: %v", resource, err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		lbalLog.Errorf("Reading body from %s: %v", resource, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// String describes the proxy for startup logs.
func (p *Proxy) String() string {
	if p.cache == nil {
		return "proxy(cache disabled)"
	}
	return fmt.Sprintf("proxy(cache capacity %d)", p.cache.Cap())
}

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/pquerna/cachecontrol/cacheobject"
)

// cacheKey creates a cache key from the request URI, query included.
func cacheKey(requestURI string) string {
	hash := sha256.Sum256([]byte(requestURI))
	return hex.EncodeToString(hash[:])
}

// requestPolicy reports whether a request carrying the Cache-Control value
// header may use the cache, and the max-age it asked for. A header that
// does not parse is treated as absent.
func requestPolicy(header string) (bool, int) {
	if header == "" {
		return true, 0
	}

	cc, err := cacheobject.ParseRequestCacheControl(header)
	if err != nil {
		lbalLog.Debugf("Ignoring request Cache-Control %q: %v", header,
			err)
		return true, 0
	}
	if cc.NoStore || cc.NoCache {
		return false, 0
	}

	return true, positiveAge(cc.MaxAge)
}

// responsePolicy reports whether a backend response with the Cache-Control
// value header may be stored, and the max-age it allows.
func responsePolicy(header string) (bool, int) {
	if header == "" {
		return true, 0
	}

	cc, err := cacheobject.ParseResponseCacheControl(header)
	if err != nil {
		lbalLog.Debugf("Ignoring response Cache-Control %q: %v",
			header, err)
		return true, 0
	}
	if cc.NoStore || cc.NoCachePresent {
		return false, 0
	}

	return true, positiveAge(cc.MaxAge)
}

// positiveAge maps an unset or non-positive delta to zero.
func positiveAge(d cacheobject.DeltaSeconds) int {
	if d <= 0 {
		return 0
	}
	return int(d)
}

// shouldCache reports whether r may be answered from or stored in the
// cache, and the client's max-age if it gave one.
func shouldCache(r *http.Request) (bool, int) {
	ok, maxAge := requestPolicy(r.Header.Get("Cache-Control"))
	if !ok {
		return false, 0
	}

	// Legacy HTTP/1.0.
	if r.Header.Get("Pragma") == "no-cache" {
		return false, 0
	}

	return true, maxAge
}

// Package httpcond implements the conditional-request evaluation rules
// of spec §4.7: freshness (If-None-Match / If-Modified-Since) and Range
// applicability (If-Range), used by components deciding between a full,
// a 304, and a 206 response.
package httpcond

import (
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Stat carries the filesystem-style metadata used as a fallback
// last-modified source, mirroring spec's "stats?" parameter.
type Stat struct {
	ModTime time.Time
}

// IsContentFresh reports whether a 304 Not Modified is legitimately
// substitutable for a content response, per spec §4.7.
func IsContentFresh(method string, reqHeaders, respHeaders http.Header, stat *Stat) bool {
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}

	if hasNoCache(reqHeaders.Get("Cache-Control")) {
		return false
	}

	if inm := reqHeaders.Get("If-None-Match"); inm != "" {
		etag := respHeaders.Get("ETag")
		if etag == "" {
			return false
		}
		return etagListContains(inm, etag)
	}

	if ims := reqHeaders.Get("If-Modified-Since"); ims != "" {
		imsTime, err := http.ParseTime(ims)
		if err != nil {
			return false
		}

		lastMod, ok := lastModified(respHeaders, stat)
		if !ok {
			return false
		}

		return !lastMod.After(imsTime)
	}

	return false
}

// IsRangeApplicable reports whether a 206 Partial Content is appropriate,
// per spec §4.7.
func IsRangeApplicable(method string, reqHeaders, respHeaders http.Header, stat *Stat) bool {
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}

	ifRange := reqHeaders.Get("If-Range")
	if ifRange == "" {
		return true
	}

	if strings.HasPrefix(ifRange, `"`) {
		return ifRange == respHeaders.Get("ETag")
	}

	ifRangeTime, err := http.ParseTime(ifRange)
	if err != nil {
		return false
	}

	lastMod, ok := lastModified(respHeaders, stat)
	if !ok {
		return false
	}

	return !lastMod.After(ifRangeTime)
}

func lastModified(respHeaders http.Header, stat *Stat) (time.Time, bool) {
	if stat != nil && !stat.ModTime.IsZero() {
		return stat.ModTime.Truncate(time.Second), true
	}

	lm := respHeaders.Get("Last-Modified")
	if lm == "" {
		return time.Time{}, false
	}

	t, err := http.ParseTime(lm)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func hasNoCache(cacheControl string) bool {
	for _, d := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(d), "no-cache") {
			return true
		}
	}
	return false
}

// etagListContains reports whether the comma-separated If-None-Match
// value contains etag, treating a bare "*" as matching any non-empty
// etag, and comparing weak etags (W/"...") by their opaque tag only.
func etagListContains(ifNoneMatch, etag string) bool {
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}

	target := strings.TrimPrefix(etag, "W/")

	for _, raw := range strings.Split(ifNoneMatch, ",") {
		tag := textproto.TrimString(raw)
		tag = strings.TrimPrefix(tag, "W/")
		if tag == target {
			return true
		}
	}

	return false
}

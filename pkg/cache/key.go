package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached response.
type CacheKey struct {
	// Host is the API host (e.g., "api.open.undp.org")
	Host string

	// Path is the request path (e.g., "/api/projects/00057409.json")
	Path string

	// QueryParams are the query parameters (e.g., {"allreleases": "false"})
	QueryParams url.Values
}

// KeyForURL derives a cache key from a raw URL. Unparseable URLs are kept
// verbatim in Path.
func KeyForURL(raw string) CacheKey {
	u, err := url.Parse(raw)
	if err != nil {
		return CacheKey{Path: raw}
	}
	return CacheKey{Host: u.Host, Path: u.Path, QueryParams: u.Query()}
}

// String generates a deterministic cache key string.
// Format: devdata:host:path:query1=val1:query2=val2
//
// Example:
//
//	devdata:unstats.un.org:SDGAPI/v1/sdg/Series/List:allreleases=false
func (k CacheKey) String() string {
	parts := []string{"devdata"}

	if k.Host != "" {
		parts = append(parts, strings.ToLower(k.Host))
	}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, path)
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

// Envelope meta keys written by cached read endpoints.
const (
	MetaServedFromCache = "served_from_cache"
	MetaElapsedMS       = "elapsed_ms"
)

// ResponseMeta gives each request its own envelope metadata map.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// CachedReadMeta records whether a read skipped the database and how long the handler took,
// returning the map to pass to response.JSON.
func CachedReadMeta(c *gin.Context, servedFromCache bool, started time.Time) map[string]interface{} {
	meta := ensureMeta(c)
	meta[MetaServedFromCache] = servedFromCache
	meta[MetaElapsedMS] = time.Since(started).Milliseconds()
	return meta
}

// Meta returns the metadata map stored on the context, or nil.
func Meta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, ok := c.Get(responseMetaKey); ok {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := Meta(c); meta != nil {
		return meta
	}
	meta := map[string]interface{}{}
	if c != nil {
		c.Set(responseMetaKey, meta)
	}
	return meta
}

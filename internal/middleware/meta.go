package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/models"
)

// Keys written into the response envelope's meta object.
const (
	MetaProcessingTime       = "processing_time_ms"
	MetaStatsCacheHit        = "cache_hit"
	MetaClassificationSource = "classification_source"

	responseMetaKey = "response_meta"
)

// WithResponseMeta gives each API request a meta map and stamps its processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		meta := metaFor(c)
		if _, ok := meta[MetaProcessingTime]; !ok {
			meta[MetaProcessingTime] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit reports whether the stats payload came from the cache.
func SetCacheHit(c *gin.Context, hit bool) {
	metaFor(c)[MetaStatsCacheHit] = hit
}

// SetClassificationSource reports how a submitted grievance was routed.
func SetClassificationSource(c *gin.Context, source models.ClassificationSource) {
	if source == "" {
		return
	}
	metaFor(c)[MetaClassificationSource] = string(source)
}

// ExtractMeta returns the meta map for the request, or nil when none was set.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, _ := value.(map[string]interface{})
	return meta
}

func metaFor(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}

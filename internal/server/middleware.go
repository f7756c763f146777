package server

import (
	"iter"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sandrolain/searchexpr/pkg/metrics"
	"github.com/sandrolain/searchexpr/pkg/types"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// requestID propagates or assigns a request id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// metricsMiddleware records request count and duration.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, pathLabel(c), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// pathLabel uses the route pattern to keep label cardinality bounded.
func pathLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

func pullRecords(seq types.Sequence) (func() (*types.Record, error, bool), func()) {
	return iter.Pull2(seq.Records())
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
)

type MetricsMiddleware struct {
	serviceName string
}

func NewMetricsMiddleware(serviceName string) *MetricsMiddleware {
	return &MetricsMiddleware{
		serviceName: serviceName,
	}
}

// Handler пишет метрики запроса после всех остальных обработчиков,
// поэтому его нужно регистрировать первым.
func (m *MetricsMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Шаблон маршрута вместо пути, чтобы идентификаторы не попадали в метки.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		metrics.RecordHTTPRequest(m.serviceName, c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

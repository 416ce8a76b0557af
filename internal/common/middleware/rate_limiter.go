package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Изменяющие запросы считаются в отдельном бакете от чтения.
const (
	bucketRead  = "read"
	bucketWrite = "write"
)

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// ClientTTL - через сколько простоя бакеты клиента удаляются.
	ClientTTL time.Duration
}

type bucketKey struct {
	ip     string
	bucket string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware ограничивает число запросов с одного IP.
type RateLimiterMiddleware struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewRateLimiterMiddleware(ctx context.Context, cfg RateLimitConfig, logger *slog.Logger) *RateLimiterMiddleware {
	if cfg.Requests <= 0 {
		cfg.Requests = 1
	}

	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	if cfg.ClientTTL <= 0 {
		cfg.ClientTTL = time.Hour
	}

	m := &RateLimiterMiddleware{
		buckets: make(map[bucketKey]*bucket),
		limit:   rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:   cfg.Requests,
		ttl:     cfg.ClientTTL,
		now:     time.Now,
		logger:  logger,
	}

	go m.evictIdle(ctx)

	return m
}

func bucketFor(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return bucketRead
	default:
		return bucketWrite
	}
}

// reserve возвращает 0, если запрос пропущен, иначе время до освобождения токена.
func (m *RateLimiterMiddleware) reserve(key bucketKey) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}

	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return m.ttl
	}

	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay
	}

	return 0
}

func (m *RateLimiterMiddleware) evictIdle(ctx context.Context) {
	ticker := time.NewTicker(m.ttl / 6)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.evictBefore(m.now().Add(-m.ttl)); n > 0 {
				m.logger.Debug("Удалены неактивные клиенты лимитера", "count", n)
			}
		}
	}
}

func (m *RateLimiterMiddleware) evictBefore(deadline time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0

	for key, b := range m.buckets {
		if b.lastSeen.Before(deadline) {
			delete(m.buckets, key)
			evicted++
		}
	}

	return evicted
}

func (m *RateLimiterMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bucketKey{ip: c.ClientIP(), bucket: bucketFor(c.Request.Method)}

		wait := m.reserve(key)
		if wait == 0 {
			c.Next()
			return
		}

		m.logger.Warn("Превышен лимит запросов",
			"ip", key.ip,
			"bucket", key.bucket,
			"path", c.Request.URL.Path,
		)

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.Header("X-RateLimit-Limit", strconv.Itoa(m.burst))
		c.Header("X-RateLimit-Remaining", "0")

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"description": "Превышен лимит запросов"})
	}
}

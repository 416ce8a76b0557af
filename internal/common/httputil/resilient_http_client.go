package httputil

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/central-university-dev/go-listing-tracker/internal/config"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// CreateResilientHTTPClient возвращает resty-клиент с таймаутом, повторами по
// retryable-статусам и circuit breaker'ом на уровне транспорта.
func CreateResilientHTTPClient(cfg *config.Config, logger *slog.Logger, serviceName string) *resty.Client {
	client := resty.New().
		SetTimeout(cfg.ExternalRequestTimeout).
		SetHeader("User-Agent", userAgent).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryBackoff).
		SetRetryMaxWaitTime(cfg.RetryBackoff * 5)

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			// Открытый breaker не повторяем: ответ все равно будет тем же.
			return !isBreakerRejection(err)
		}

		return slices.Contains(cfg.RetryableStatusCodes, r.StatusCode())
	})

	client.SetTransport(&CircuitBreakerTransport{
		breaker:     gobreaker.NewCircuitBreaker(breakerSettings(cfg, logger, serviceName)),
		next:        http.DefaultTransport,
		logger:      logger,
		serviceName: serviceName,
	})

	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp.Request.Attempt > 1 {
			logger.Info("Повторный HTTP-запрос",
				"service", serviceName,
				"url", resp.Request.URL,
				"attempt", resp.Request.Attempt,
				"status", resp.StatusCode(),
			)
		}

		return nil
	})

	return client
}

func breakerSettings(cfg *config.Config, logger *slog.Logger, serviceName string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        serviceName + "_circuit_breaker",
		MaxRequests: uint32(cfg.CBPermittedCallsInHalfOpen), //nolint:gosec // G115: значение из конфига
		Interval:    time.Duration(cfg.CBSlidingWindowSize) * time.Second,
		Timeout:     cfg.CBWaitDurationInOpenState,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.Requests >= uint32(cfg.CBMinimumRequiredCalls) && //nolint:gosec // G115: значение из конфига
				failureRatio >= float64(cfg.CBFailureRateThreshold)/100.0
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Изменение состояния circuit breaker",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// CircuitBreakerTransport считает ответы 5xx отказами и не пропускает запросы при открытом breaker'е.
type CircuitBreakerTransport struct {
	breaker     *gobreaker.CircuitBreaker
	next        http.RoundTripper
	logger      *slog.Logger
	serviceName string
}

func (t *CircuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.breaker.Execute(func() (any, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, &customerrors.HTTPError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}

		return resp, nil
	})
	if err != nil {
		if isBreakerRejection(err) {
			t.logger.Warn("Circuit breaker открыт, запрос отклонен",
				"service", t.serviceName,
				"url", req.URL.String(),
			)
		}

		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, &customerrors.HTTPError{StatusCode: http.StatusBadGateway, Message: "пустой ответ транспорта"}
	}

	return resp, nil
}

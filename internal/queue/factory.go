package queue

import (
	"context"
	"log/slog"

	"github.com/central-university-dev/go-listing-tracker/internal/config"
	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

// NewStore создает хранилище очереди для выбранного бэкенда.
// RedisStore нужно закрыть после остановки очереди.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.QueueBackend {
	case config.RedisQueue:
		client, err := NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, err
		}

		return NewRedisStore(client, cfg.QueuePrefix, logger), nil
	case config.MemoryQueue:
		logger.Warn("Очередь хранится в памяти, задачи не переживут перезапуск")

		return NewMemoryStore(), nil
	default:
		return nil, &domainerrors.ErrUnknownQueueBackend{Backend: string(cfg.QueueBackend)}
	}
}

func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkers(cfg.QueueWorkers),
		WithPollInterval(cfg.QueuePollInterval),
		WithRetention(cfg.QueueJobRetention),
		WithVisibilityTimeout(cfg.QueueVisibilityTimeout),
		WithBackoff(cfg.RetryBackoff, cfg.RetryMaxBackoff),
	}
}

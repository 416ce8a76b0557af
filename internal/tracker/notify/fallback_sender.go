package notify

import (
	"context"
	"io"
	"log/slog"

	"go.uber.org/multierr"
)

type FallbackSender struct {
	primary   ChatSender
	secondary ChatSender
	logger    *slog.Logger
}

func NewFallbackSender(primary, secondary ChatSender, logger *slog.Logger) *FallbackSender {
	return &FallbackSender{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (s *FallbackSender) Send(ctx context.Context, chatID int64, msg Message) error {
	err := s.primary.Send(ctx, chatID, msg)
	if err == nil {
		return nil
	}

	s.logger.Warn("Основной транспорт недоступен, переключаемся на резервный",
		"primaryError", err,
		"chatId", chatID,
		"externalItemId", msg.ExternalItemID,
	)

	if fallbackErr := s.secondary.Send(ctx, chatID, msg); fallbackErr != nil {
		return multierr.Append(err, fallbackErr)
	}

	s.logger.Info("Объявление отправлено через резервный транспорт",
		"chatId", chatID,
		"externalItemId", msg.ExternalItemID,
	)

	return nil
}

func (s *FallbackSender) Close() error {
	return multierr.Append(Close(s.primary), Close(s.secondary))
}

// Close закрывает отправителя, если он держит соединения.
func Close(sender ChatSender) error {
	if closer, ok := sender.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

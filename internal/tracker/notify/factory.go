package notify

import (
	"log/slog"
	"strings"

	"github.com/central-university-dev/go-listing-tracker/internal/config"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

const (
	TelegramTransport = "TELEGRAM"
	KafkaTransport    = "KAFKA"
)

// NewChatSender создает отправителя по MESSAGE_TRANSPORT, при FALLBACK_ENABLED
// оборачивая его резервным транспортом.
func NewChatSender(cfg *config.Config, logger *slog.Logger) (ChatSender, error) {
	primary, err := newTransport(cfg.MessageTransport, cfg, logger)
	if err != nil {
		return nil, err
	}

	if !cfg.FallbackEnabled {
		return primary, nil
	}

	secondary, err := newTransport(cfg.FallbackTransport, cfg, logger)
	if err != nil {
		_ = Close(primary)
		return nil, err
	}

	logger.Info("Включен резервный транспорт доставки",
		"primary", cfg.MessageTransport,
		"fallback", cfg.FallbackTransport,
	)

	return NewFallbackSender(primary, secondary, logger), nil
}

func newTransport(transport string, cfg *config.Config, logger *slog.Logger) (ChatSender, error) {
	logger.Info("Создание транспорта доставки", "type", transport)

	switch strings.ToUpper(transport) {
	case TelegramTransport:
		return NewTelegramSender(cfg.TelegramBotToken, cfg.ExternalRequestTimeout, logger)
	case KafkaTransport:
		return NewKafkaSender(strings.Split(cfg.KafkaBrokers, ","), cfg.TopicListingDelivered, logger), nil
	default:
		return nil, &customerrors.ErrUnknownTransport{Transport: transport}
	}
}

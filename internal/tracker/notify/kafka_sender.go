package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender публикует доставки в топик, из которого их забирает внешний шлюз.
type KafkaSender struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

type DeliveryMessage struct {
	ChatID         int64  `json:"chatId"`
	ExternalItemID string `json:"externalItemId"`
	Text           string `json:"text"`
	ImageURL       string `json:"imageUrl,omitempty"`
	LinkURL        string `json:"linkUrl"`
	LinkText       string `json:"linkText"`
}

func NewKafkaSender(brokers []string, topic string, logger *slog.Logger) *KafkaSender {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Logger:       kafka.LoggerFunc(logger.Debug),
		ErrorLogger:  kafka.LoggerFunc(logger.Error),
	}

	return newKafkaSender(writer, topic, logger)
}

func newKafkaSender(writer messageWriter, topic string, logger *slog.Logger) *KafkaSender {
	return &KafkaSender{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

func (s *KafkaSender) Send(ctx context.Context, chatID int64, msg Message) error {
	value, err := json.Marshal(DeliveryMessage{
		ChatID:         chatID,
		ExternalItemID: msg.ExternalItemID,
		Text:           msg.Text,
		ImageURL:       msg.ImageURL,
		LinkURL:        msg.LinkURL,
		LinkText:       msg.LinkText,
	})
	if err != nil {
		return fmt.Errorf("ошибка при сериализации сообщения: %w", err)
	}

	// Ключ по чату сохраняет порядок доставок внутри одного чата.
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(chatID, 10)),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return &customerrors.ErrSendMessage{ChatID: chatID, Cause: err}
	}

	s.logger.Debug("Доставка опубликована в Kafka",
		"chatId", chatID,
		"externalItemId", msg.ExternalItemID,
		"topic", s.topic,
	)

	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

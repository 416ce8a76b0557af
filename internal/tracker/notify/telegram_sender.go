package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

func NewTelegramSender(token string, timeout time.Duration, logger *slog.Logger) (*TelegramSender, error) {
	bot, err := NewTelegramBot(token, tgbotapi.APIEndpoint, timeout)
	if err != nil {
		return nil, err
	}

	return NewTelegramSenderWithBot(bot, logger), nil
}

// NewTelegramBot создает клиента Bot API с ограничением времени на каждый запрос.
// endpoint в формате tgbotapi.APIEndpoint.
func NewTelegramBot(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании Telegram клиента: %w", err)
	}

	return bot, nil
}

// NewTelegramSenderWithBot используется в тестах с ботом на подмененном endpoint.
func NewTelegramSenderWithBot(bot *tgbotapi.BotAPI, logger *slog.Logger) *TelegramSender {
	return &TelegramSender{
		bot:    bot,
		logger: logger,
	}
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var chattable tgbotapi.Chattable

	if msg.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(msg.ImageURL))
		photo.Caption = msg.Text
		photo.ParseMode = tgbotapi.ModeHTML

		if keyboard, ok := linkKeyboard(msg); ok {
			photo.ReplyMarkup = keyboard
		}

		chattable = photo
	} else {
		message := tgbotapi.NewMessage(chatID, msg.Text)
		message.ParseMode = tgbotapi.ModeHTML

		if keyboard, ok := linkKeyboard(msg); ok {
			message.ReplyMarkup = keyboard
		}

		chattable = message
	}

	if err := s.send(ctx, chattable); err != nil {
		return &customerrors.ErrSendMessage{ChatID: chatID, Cause: err}
	}

	s.logger.Debug("Объявление отправлено в Telegram",
		"chatId", chatID,
		"externalItemId", msg.ExternalItemID,
		"withImage", msg.ImageURL != "",
	)

	return nil
}

// send не ждет ответа Bot API дольше ctx. Сам запрос завершится по таймауту клиента.
func (s *TelegramSender) send(ctx context.Context, c tgbotapi.Chattable) error {
	done := make(chan error, 1)

	go func() {
		_, err := s.bot.Send(c)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func linkKeyboard(msg Message) (tgbotapi.InlineKeyboardMarkup, bool) {
	if msg.LinkURL == "" {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(msg.LinkText, msg.LinkURL)),
	), true
}

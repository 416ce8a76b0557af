package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

// UpdatesClientTimeout - таймаут HTTP клиента для long polling, больше времени ожидания getUpdates.
const UpdatesClientTimeout = (updatesTimeout + 15) * time.Second

const (
	updatesTimeout = 60
	commandTimeout = 10 * time.Second
	failedResponse = "Произошла ошибка при обработке команды. Пожалуйста, попробуйте позже."
	idleResponse   = "Введите команду или /help для просмотра доступных команд."
)

type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type CommandProcessor interface {
	ProcessCommand(ctx context.Context, command *Command) (string, error)
}

// Poller получает обновления Telegram long polling и отвечает на команды.
type Poller struct {
	bot       BotAPI
	processor CommandProcessor
	logger    *slog.Logger
}

func NewPoller(bot BotAPI, processor CommandProcessor, logger *slog.Logger) *Poller {
	return &Poller{
		bot:       bot,
		processor: processor,
		logger:    logger,
	}
}

// Run блокируется до отмены ctx или закрытия канала обновлений.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Запуск Telegram поллера")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updatesTimeout

	updates := p.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Остановка Telegram поллера")
			p.bot.StopReceivingUpdates()

			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			p.processUpdate(ctx, &update)
		}
	}
}

func (p *Poller) processUpdate(ctx context.Context, update *tgbotapi.Update) {
	message := update.Message
	if message == nil || message.Chat == nil {
		return
	}

	chatID := message.Chat.ID

	if !message.IsCommand() {
		p.reply(chatID, idleResponse)
		return
	}

	command := &Command{
		ChatID: chatID,
		Name:   message.Command(),
		Args:   strings.Fields(message.CommandArguments()),
	}

	p.logger.Info("Получена команда", "chatId", chatID, "command", command.Name)

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	response, err := p.processor.ProcessCommand(cmdCtx, command)

	switch {
	case err == nil:
		metrics.RecordBotCommand(command.Name)
	case errors.Is(err, &domainerrors.ErrUnknownCommand{}):
		metrics.RecordBotCommand("unknown")
	default:
		metrics.RecordBotCommand(command.Name)
		p.logger.Error("Ошибка при обработке команды",
			"error", err,
			"chatId", chatID,
			"command", command.Name,
		)

		response = failedResponse
	}

	p.reply(chatID, response)
}

func (p *Poller) reply(chatID int64, text string) {
	if text == "" {
		return
	}

	if _, err := p.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		p.logger.Error("Ошибка при отправке ответа",
			"error", err,
			"chatId", chatID,
		)
	}
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

const (
	CommandStart       = "start"
	CommandHelp        = "help"
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandList        = "list"
)

const helpText = `Доступные команды:
/subscribe <ссылка на категорию> <запрос> - отслеживать новые объявления (запрос * - вся категория)
/unsubscribe <id> - прекратить отслеживание
/list - показать подписки
/help - список команд`

type Subscriptions interface {
	Subscribe(ctx context.Context, externalChatID int64, searchTerm, sourceLink string) (*models.Keyword, error)
	Unsubscribe(ctx context.Context, externalChatID, keywordID int64) error
	ListKeywords(ctx context.Context, externalChatID int64) ([]*models.Keyword, error)
}

// Command - команда из чата: имя без "/" и аргументы через пробел.
type Command struct {
	ChatID int64
	Name   string
	Args   []string
}

type CommandService struct {
	subscriptions Subscriptions
}

func NewCommandService(subscriptions Subscriptions) *CommandService {
	return &CommandService{subscriptions: subscriptions}
}

// ProcessCommand возвращает ответ для чата. Ошибки пользователя превращаются
// в текст ответа, наружу возвращаются только внутренние ошибки.
func (s *CommandService) ProcessCommand(ctx context.Context, command *Command) (string, error) {
	switch command.Name {
	case CommandStart:
		return "Привет! Я слежу за новыми объявлениями на Carousell.\n\n" + helpText, nil
	case CommandHelp:
		return helpText, nil
	case CommandSubscribe:
		return s.handleSubscribe(ctx, command)
	case CommandUnsubscribe:
		return s.handleUnsubscribe(ctx, command)
	case CommandList:
		return s.handleList(ctx, command)
	default:
		return "Неизвестная команда. Введите /help для просмотра доступных команд.",
			&domainerrors.ErrUnknownCommand{Command: command.Name}
	}
}

func (s *CommandService) handleSubscribe(ctx context.Context, command *Command) (string, error) {
	if len(command.Args) < 2 {
		return "Использование: /subscribe <ссылка на категорию> <запрос>", nil
	}

	link := command.Args[0]
	term := strings.Join(command.Args[1:], " ")

	keyword, err := s.subscriptions.Subscribe(ctx, command.ChatID, term, link)
	if err != nil {
		var missingField *domainerrors.ErrMissingRequiredField

		switch {
		case errors.Is(err, &domainerrors.ErrKeywordAlreadyTracked{}):
			return "Этот запрос уже отслеживается.", nil
		case errors.Is(err, &domainerrors.ErrInvalidValue{}), errors.As(err, &missingField):
			return "Некорректная ссылка или запрос.", nil
		default:
			return "", err
		}
	}

	return fmt.Sprintf("Запрос «%s» добавлен (id %d). Новые объявления будут приходить в этот чат.",
		keyword.SearchTerm, keyword.ID), nil
}

func (s *CommandService) handleUnsubscribe(ctx context.Context, command *Command) (string, error) {
	if len(command.Args) != 1 {
		return "Использование: /unsubscribe <id>", nil
	}

	keywordID, err := strconv.ParseInt(command.Args[0], 10, 64)
	if err != nil {
		return "Идентификатор подписки должен быть числом.", nil
	}

	if err := s.subscriptions.Unsubscribe(ctx, command.ChatID, keywordID); err != nil {
		if errors.Is(err, &domainerrors.ErrKeywordNotTracked{}) ||
			errors.Is(err, &domainerrors.ErrKeywordNotFound{}) ||
			errors.Is(err, &domainerrors.ErrChatNotFound{}) {
			return "Подписка не найдена.", nil
		}

		return "", err
	}

	return fmt.Sprintf("Подписка %d удалена.", keywordID), nil
}

func (s *CommandService) handleList(ctx context.Context, command *Command) (string, error) {
	keywords, err := s.subscriptions.ListKeywords(ctx, command.ChatID)
	if err != nil && !errors.Is(err, &domainerrors.ErrChatNotFound{}) {
		return "", err
	}

	if len(keywords) == 0 {
		return "У вас нет подписок.", nil
	}

	var sb strings.Builder

	sb.WriteString("Ваши подписки:\n\n")

	for _, k := range keywords {
		fmt.Fprintf(&sb, "%d. «%s» - %s\n", k.ID, k.SearchTerm, k.SourceLink)
	}

	return sb.String(), nil
}

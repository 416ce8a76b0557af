package service

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/repository"
	"github.com/central-university-dev/go-listing-tracker/pkg/txs"
)

// LoopArmer запускает самоперезапускающиеся задачи опроса.
type LoopArmer interface {
	ArmScrape(ctx context.Context, keywordID int64) (*queue.Handle, error)
	ArmStatus(ctx context.Context, listing *models.Listing) (*queue.Handle, error)
}

type SubscriptionService struct {
	keywords   repository.KeywordRepository
	chats      repository.ChatRepository
	listings   repository.ListingRepository
	deliveries repository.DeliveryRepository
	txManager  txs.Transactor
	armer      LoopArmer
	logger     *slog.Logger
}

func NewSubscriptionService(repos *repository.Repositories, armer LoopArmer, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		keywords:   repos.Keywords,
		chats:      repos.Chats,
		listings:   repos.Listings,
		deliveries: repos.Deliveries,
		txManager:  repos.Tx,
		armer:      armer,
		logger:     logger,
	}
}

// Subscribe подписывает чат на поисковый запрос по ссылке категории и
// запускает опрос ключевого слова. Запрос "*" означает всю категорию.
func (s *SubscriptionService) Subscribe(
	ctx context.Context,
	externalChatID int64,
	searchTerm, sourceLink string,
) (*models.Keyword, error) {
	searchTerm = strings.TrimSpace(searchTerm)
	sourceLink = strings.TrimSpace(sourceLink)

	if searchTerm == "" {
		return nil, &errors.ErrMissingRequiredField{FieldName: "searchTerm"}
	}

	if err := validateSourceLink(sourceLink); err != nil {
		return nil, err
	}

	var keyword *models.Keyword

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		chat, err := s.chats.FindOrCreate(ctx, externalChatID)
		if err != nil {
			return err
		}

		kw, err := s.keywords.FindOrCreate(ctx, searchTerm, sourceLink)
		if err != nil {
			return err
		}

		if slices.Contains(kw.ChatIDs, chat.ID) {
			return &errors.ErrKeywordAlreadyTracked{ChatID: externalChatID, SearchTerm: searchTerm}
		}

		if err := s.keywords.AddChat(ctx, kw.ID, chat.ID); err != nil {
			return err
		}

		keyword, err = s.keywords.FindByID(ctx, kw.ID)

		return err
	})
	if err != nil {
		return nil, err
	}

	// Подписка уже сохранена: если постановка не удалась, цикл запустит супервизор.
	if _, err := s.armer.ArmScrape(ctx, keyword.ID); err != nil {
		s.logger.Error("Ошибка при запуске опроса ключевого слова",
			"keywordId", keyword.ID,
			"error", err,
		)
	}

	s.logger.Info("Чат подписан на ключевое слово",
		"chatId", externalChatID,
		"keywordId", keyword.ID,
		"searchTerm", searchTerm,
	)

	return keyword, nil
}

// Unsubscribe отписывает чат. Ключевое слово без подписчиков удаляется,
// его цикл опроса завершится на следующем запуске.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, externalChatID, keywordID int64) error {
	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		chat, err := s.chats.FindByExternalID(ctx, externalChatID)
		if err != nil {
			return err
		}

		if err := s.keywords.RemoveChat(ctx, keywordID, chat.ID); err != nil {
			return err
		}

		kw, err := s.keywords.FindByID(ctx, keywordID)
		if err != nil {
			return err
		}

		if kw.HasSubscribers() {
			return nil
		}

		s.logger.Info("Удаление ключевого слова без подписчиков", "keywordId", keywordID)

		return s.keywords.Delete(ctx, keywordID)
	})
}

func (s *SubscriptionService) ListKeywords(ctx context.Context, externalChatID int64) ([]*models.Keyword, error) {
	chat, err := s.chats.FindByExternalID(ctx, externalChatID)
	if err != nil {
		return nil, err
	}

	return s.keywords.FindByChatID(ctx, chat.ID)
}

func (s *SubscriptionService) ListChatListings(
	ctx context.Context,
	externalChatID int64,
	page, limit int,
) (models.Page[*models.Listing], error) {
	chat, err := s.chats.FindByExternalID(ctx, externalChatID)
	if err != nil {
		return models.Page[*models.Listing]{}, err
	}

	return s.deliveries.FindListingsByChat(ctx, chat.ID, page, limit)
}

// ListListings возвращает объявления с указанным статусом, пустой статус - все.
func (s *SubscriptionService) ListListings(
	ctx context.Context,
	status models.ListingStatus,
	page, limit int,
) (models.Page[*models.Listing], error) {
	if status != "" && !status.Valid() {
		return models.Page[*models.Listing]{}, &errors.ErrInvalidValue{FieldName: "status", Value: string(status)}
	}

	return s.listings.FindByStatus(ctx, status, page, limit)
}

// ArmAll ставит задачи опроса для всех ключевых слов с подписчиками и
// проверки статуса для всех активных объявлений. Уже запущенные циклы не
// дублируются. Возвращает число новых задач.
func (s *SubscriptionService) ArmAll(ctx context.Context) (int, error) {
	keywords, err := s.keywords.GetSubscribed(ctx)
	if err != nil {
		return 0, err
	}

	armed := 0

	for _, kw := range keywords {
		handle, err := s.armer.ArmScrape(ctx, kw.ID)
		if err != nil {
			s.logger.Error("Ошибка при запуске опроса ключевого слова",
				"keywordId", kw.ID,
				"error", err,
			)

			continue
		}

		if !handle.Duplicate {
			armed++
		}
	}

	statuses, err := s.armStatusPolls(ctx)
	if err != nil {
		return armed, err
	}

	return armed + statuses, nil
}

func (s *SubscriptionService) armStatusPolls(ctx context.Context) (int, error) {
	armed := 0

	for page := 1; ; page++ {
		listings, err := s.listings.FindByStatus(ctx, models.StatusActive, page, models.MaxPageLimit)
		if err != nil {
			return armed, err
		}

		for _, listing := range listings.Items {
			handle, err := s.armer.ArmStatus(ctx, listing)
			if err != nil {
				s.logger.Error("Ошибка при запуске проверки статуса",
					"externalItemId", listing.ExternalItemID,
					"error", err,
				)

				continue
			}

			if !handle.Duplicate {
				armed++
			}
		}

		if !listings.HasNext {
			return armed, nil
		}
	}
}

func validateSourceLink(link string) error {
	if link == "" {
		return &errors.ErrMissingRequiredField{FieldName: "sourceLink"}
	}

	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &errors.ErrInvalidValue{FieldName: "sourceLink", Value: link}
	}

	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

type KeywordRepository interface {
	FindOrCreate(ctx context.Context, searchTerm, sourceLink string) (*models.Keyword, error)
	FindByID(ctx context.Context, id int64) (*models.Keyword, error)
	FindByChatID(ctx context.Context, chatID int64) ([]*models.Keyword, error)
	GetSubscribed(ctx context.Context) ([]*models.Keyword, error)
	// AppendRecentItems дописывает идентификаторы в историю и обрезает ее до limit одним обновлением.
	AppendRecentItems(ctx context.Context, id int64, itemIDs []string, limit int) error
	AddChat(ctx context.Context, keywordID, chatID int64) error
	RemoveChat(ctx context.Context, keywordID, chatID int64) error
	Delete(ctx context.Context, id int64) error
}

type ChatRepository interface {
	FindOrCreate(ctx context.Context, externalChatID int64) (*models.Chat, error)
	FindByID(ctx context.Context, id int64) (*models.Chat, error)
	FindByExternalID(ctx context.Context, externalChatID int64) (*models.Chat, error)
	AppendDelivered(ctx context.Context, id int64, itemID string, limit int) error
}

type ListingRepository interface {
	// Upsert сохраняет объявление, если его еще нет. created=false, если оно уже было.
	Upsert(ctx context.Context, listing *models.Listing) (stored *models.Listing, created bool, err error)
	FindByExternalID(ctx context.Context, externalItemID string) (*models.Listing, error)
	UpdateStatus(ctx context.Context, externalItemID string, status models.ListingStatus, changedAt time.Time) error
	// IncrementCheckCount увеличивает счетчик проверок и возвращает новое значение.
	IncrementCheckCount(
		ctx context.Context,
		externalItemID string,
		nextDelay time.Duration,
		checkedAt time.Time,
	) (int, error)
	FindByStatus(ctx context.Context, status models.ListingStatus, page, limit int) (models.Page[*models.Listing], error)
}

type DeliveryRepository interface {
	// CreateMany создает связи чат-объявление, существующие пары пропускаются.
	CreateMany(ctx context.Context, listingID int64, chatIDs []int64) error
	FindListingsByChat(ctx context.Context, chatID int64, page, limit int) (models.Page[*models.Listing], error)
	FindChatsByListing(ctx context.Context, listingID int64, page, limit int) (models.Page[*models.Chat], error)
}

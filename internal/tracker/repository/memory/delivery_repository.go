package memory

import (
	"context"
	"sort"
	"time"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

type DeliveryRepository struct {
	db *DB
}

func NewDeliveryRepository(db *DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) CreateMany(_ context.Context, listingID int64, chatIDs []int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()

	for _, chatID := range chatIDs {
		p := pair{left: chatID, right: listingID}
		if _, ok := r.db.chatListings[p]; !ok {
			r.db.chatListings[p] = now
		}
	}

	return nil
}

type linked[T any] struct {
	item      T
	createdAt time.Time
	id        int64
}

func sortLinked[T any](items []linked[T]) []T {
	sort.Slice(items, func(i, j int) bool {
		if items[i].createdAt.Equal(items[j].createdAt) {
			return items[i].id > items[j].id
		}

		return items[i].createdAt.After(items[j].createdAt)
	})

	result := make([]T, 0, len(items))
	for _, it := range items {
		result = append(result, it.item)
	}

	return result
}

func (r *DeliveryRepository) FindListingsByChat(
	_ context.Context,
	chatID int64,
	page, limit int,
) (models.Page[*models.Listing], error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	byID := make(map[int64]*models.Listing, len(r.db.listings))
	for _, l := range r.db.listings {
		byID[l.ID] = l
	}

	items := make([]linked[*models.Listing], 0)

	for p, createdAt := range r.db.chatListings {
		if p.left != chatID {
			continue
		}

		if l, ok := byID[p.right]; ok {
			items = append(items, linked[*models.Listing]{item: listingCopy(l), createdAt: createdAt, id: l.ID})
		}
	}

	return paginate(sortLinked(items), page, limit), nil
}

func (r *DeliveryRepository) FindChatsByListing(
	_ context.Context,
	listingID int64,
	page, limit int,
) (models.Page[*models.Chat], error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items := make([]linked[*models.Chat], 0)

	for p, createdAt := range r.db.chatListings {
		if p.right != listingID {
			continue
		}

		if chat, ok := r.db.chats[p.left]; ok {
			items = append(items, linked[*models.Chat]{item: r.db.chatCopy(chat), createdAt: createdAt, id: chat.ID})
		}
	}

	return paginate(sortLinked(items), page, limit), nil
}

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

type ListingRepository struct {
	db *DB
}

func NewListingRepository(db *DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Upsert(_ context.Context, listing *models.Listing) (*models.Listing, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if existing, ok := r.db.listings[listing.ExternalItemID]; ok {
		return listingCopy(existing), false, nil
	}

	r.db.listingSeq++
	now := r.db.now()

	stored := listingCopy(listing)
	stored.ID = r.db.listingSeq

	if stored.Status == "" {
		stored.Status = models.StatusActive
	}

	if stored.StatusChangedAt.IsZero() {
		stored.StatusChangedAt = now
	}

	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	r.db.listings[stored.ExternalItemID] = stored

	return listingCopy(stored), true, nil
}

func (r *ListingRepository) FindByExternalID(_ context.Context, externalItemID string) (*models.Listing, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	l, ok := r.db.listings[externalItemID]
	if !ok {
		return nil, &errors.ErrListingNotFound{ExternalItemID: externalItemID}
	}

	return listingCopy(l), nil
}

func (r *ListingRepository) UpdateStatus(
	_ context.Context,
	externalItemID string,
	status models.ListingStatus,
	changedAt time.Time,
) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	l, ok := r.db.listings[externalItemID]
	if !ok {
		return &errors.ErrListingNotFound{ExternalItemID: externalItemID}
	}

	l.Status = status
	l.StatusChangedAt = changedAt
	l.LastCheckedAt = changedAt

	return nil
}

func (r *ListingRepository) IncrementCheckCount(
	_ context.Context,
	externalItemID string,
	nextDelay time.Duration,
	checkedAt time.Time,
) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	l, ok := r.db.listings[externalItemID]
	if !ok {
		return 0, &errors.ErrListingNotFound{ExternalItemID: externalItemID}
	}

	l.CheckCount++
	l.NextCheckDelay = nextDelay
	l.LastCheckedAt = checkedAt

	return l.CheckCount, nil
}

func (r *ListingRepository) FindByStatus(
	_ context.Context,
	status models.ListingStatus,
	page, limit int,
) (models.Page[*models.Listing], error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items := make([]*models.Listing, 0)

	for _, l := range r.db.listings {
		if status == "" || l.Status == status {
			items = append(items, listingCopy(l))
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].StatusChangedAt.Equal(items[j].StatusChangedAt) {
			return items[i].ID > items[j].ID
		}

		return items[i].StatusChangedAt.After(items[j].StatusChangedAt)
	})

	return paginate(items, page, limit), nil
}

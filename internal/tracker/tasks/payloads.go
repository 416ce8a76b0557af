package tasks

import (
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

type ScrapePayload struct {
	KeywordID int64 `json:"keywordId"`
}

// ListingSnapshot - данные объявления из выдачи, переданные между этапами.
type ListingSnapshot struct {
	ExternalItemID string `json:"externalItemId"`
	Title          string `json:"title"`
	Price          string `json:"price"`
	Condition      string `json:"condition"`
	PostedDate     string `json:"postedDate"`
	SourceURL      string `json:"sourceUrl"`
}

func snapshotOf(l *models.Listing) ListingSnapshot {
	return ListingSnapshot{
		ExternalItemID: l.ExternalItemID,
		Title:          l.Title,
		Price:          l.Price,
		Condition:      l.Condition,
		PostedDate:     l.PostedDate,
		SourceURL:      l.SourceURL,
	}
}

func (s ListingSnapshot) toListing() *models.Listing {
	return &models.Listing{
		ExternalItemID: s.ExternalItemID,
		Title:          s.Title,
		Price:          s.Price,
		Condition:      s.Condition,
		PostedDate:     s.PostedDate,
		SourceURL:      s.SourceURL,
		Status:         models.StatusActive,
	}
}

type EnrichPayload struct {
	KeywordID int64           `json:"keywordId"`
	Listing   ListingSnapshot `json:"listing"`
	ChatIDs   []int64         `json:"chatIds"`
}

type DeliverPayload struct {
	ChatID         int64  `json:"chatId"`
	ExternalItemID string `json:"externalItemId"`
}

type StatusPollPayload struct {
	ExternalItemID string `json:"externalItemId"`
}

package handler

import (
	"time"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

type SubscribeRequest struct {
	ChatID     int64  `json:"chatId" binding:"required"`
	SearchTerm string `json:"searchTerm" binding:"required"`
	SourceLink string `json:"sourceLink" binding:"required"`
}

type chatURI struct {
	ChatID int64 `uri:"chatId" binding:"required"`
}

type keywordURI struct {
	ChatID    int64 `uri:"chatId" binding:"required"`
	KeywordID int64 `uri:"keywordId" binding:"required"`
}

type pageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=0"`
	Limit int `form:"limit" binding:"omitempty,min=0"`
}

type listingsQuery struct {
	pageQuery
	Status string `form:"status"`
}

type KeywordResponse struct {
	ID          int64     `json:"id"`
	SearchTerm  string    `json:"searchTerm"`
	SourceLink  string    `json:"sourceLink"`
	Subscribers int       `json:"subscribers"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ListingResponse struct {
	ExternalItemID  string     `json:"externalItemId"`
	Title           string     `json:"title"`
	Price           string     `json:"price"`
	Condition       string     `json:"condition,omitempty"`
	PostedDate      string     `json:"postedDate,omitempty"`
	SourceURL       string     `json:"sourceUrl"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	Status          string     `json:"status"`
	StatusChangedAt time.Time  `json:"statusChangedAt"`
	LastCheckedAt   *time.Time `json:"lastCheckedAt,omitempty"`
	CheckCount      int        `json:"checkCount"`
}

type PageResponse[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalDocs  int  `json:"totalDocs"`
	TotalPages int  `json:"totalPages"`
	HasPrev    bool `json:"hasPrev"`
	HasNext    bool `json:"hasNext"`
}

type ErrorResponse struct {
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

func toKeywordResponse(k *models.Keyword) KeywordResponse {
	return KeywordResponse{
		ID:          k.ID,
		SearchTerm:  k.SearchTerm,
		SourceLink:  k.SourceLink,
		Subscribers: len(k.ChatIDs),
		CreatedAt:   k.CreatedAt,
	}
}

func toListingResponse(l *models.Listing) ListingResponse {
	resp := ListingResponse{
		ExternalItemID:  l.ExternalItemID,
		Title:           l.Title,
		Price:           l.Price,
		Condition:       l.Condition,
		PostedDate:      l.PostedDate,
		SourceURL:       l.SourceURL,
		ImageURL:        l.ImageURL,
		Status:          string(l.Status),
		StatusChangedAt: l.StatusChangedAt,
		CheckCount:      l.CheckCount,
	}

	if !l.LastCheckedAt.IsZero() {
		checked := l.LastCheckedAt
		resp.LastCheckedAt = &checked
	}

	return resp
}

func toListingPage(p models.Page[*models.Listing]) PageResponse[ListingResponse] {
	items := make([]ListingResponse, 0, len(p.Items))
	for _, l := range p.Items {
		items = append(items, toListingResponse(l))
	}

	return PageResponse[ListingResponse]{
		Items:      items,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalDocs:  p.TotalDocs,
		TotalPages: p.TotalPages,
		HasPrev:    p.HasPrev,
		HasNext:    p.HasNext,
	}
}

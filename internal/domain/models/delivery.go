package models

import "time"

// ChatListing - связь чата и объявления, созданная при рассылке.
type ChatListing struct {
	ChatID    int64
	ListingID int64
	CreatedAt time.Time
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type Page[T any] struct {
	Items      []T
	Page       int
	Limit      int
	TotalDocs  int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// NormalizePaging приводит номер страницы и лимит к допустимым значениям.
func NormalizePaging(page, limit int) (normalizedPage, normalizedLimit int) {
	if page < 1 {
		page = 1
	}

	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}

	return page, limit
}

func NewPage[T any](items []T, page, limit, total int) Page[T] {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:      items,
		Page:       page,
		Limit:      limit,
		TotalDocs:  total,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
}

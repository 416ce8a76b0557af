package models

import (
	"time"
)

type ListingStatus string

const (
	StatusActive      ListingStatus = "active"
	StatusReserved    ListingStatus = "reserved"
	StatusSold        ListingStatus = "sold"
	StatusDeleted     ListingStatus = "deleted"
	StatusNotTracking ListingStatus = "not_tracking"
)

const (
	ShortCheckDelay = 6 * time.Hour
	LongCheckDelay  = 24 * time.Hour

	// ShortCheckThreshold - число проверок, после которого интервал увеличивается.
	ShortCheckThreshold = 40
)

func (s ListingStatus) Valid() bool {
	switch s {
	case StatusActive, StatusReserved, StatusSold, StatusDeleted, StatusNotTracking:
		return true
	default:
		return false
	}
}

// Listing - объявление на площадке. ExternalItemID - единственный бизнес-ключ.
type Listing struct {
	ID              int64
	ExternalItemID  string
	Title           string
	Price           string
	Condition       string
	PostedDate      string
	SourceURL       string
	ImageURL        string
	Status          ListingStatus
	StatusChangedAt time.Time
	LastCheckedAt   time.Time
	CheckCount      int
	NextCheckDelay  time.Duration
	CreatedAt       time.Time
}

func (l *Listing) IsActive() bool {
	return l.Status == StatusActive
}

// NextCheckDelay возвращает задержку до следующей проверки статуса
// по значению счетчика до инкремента.
func NextCheckDelay(previousCount int) time.Duration {
	if previousCount < ShortCheckThreshold {
		return ShortCheckDelay
	}

	return LongCheckDelay
}

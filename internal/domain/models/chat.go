package models

import (
	"time"
)

// Chat - подписчик, которому доставляются объявления.
// DeliveredItemIDs хранит ограниченное окно последних доставленных объявлений.
type Chat struct {
	ID               int64
	ExternalChatID   int64
	KeywordIDs       []int64
	DeliveredItemIDs []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c *Chat) HasDelivered(externalItemID string) bool {
	return ContainsID(c.DeliveredItemIDs, externalItemID)
}

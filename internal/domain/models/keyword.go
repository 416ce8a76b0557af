package models

import (
	"time"
)

// WholeCategory - поисковый запрос, означающий "все объявления по ссылке".
const WholeCategory = "*"

type Keyword struct {
	ID            int64
	SearchTerm    string
	SourceLink    string
	ChatIDs       []int64
	RecentItemIDs []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (k *Keyword) HasSubscribers() bool {
	return len(k.ChatIDs) > 0
}

// FirstScrape сообщает, что история ключевого слова еще пуста.
func (k *Keyword) FirstScrape() bool {
	return len(k.RecentItemIDs) == 0
}

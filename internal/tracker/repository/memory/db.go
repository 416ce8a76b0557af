package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

type pair struct {
	left  int64
	right int64
}

// DB - общее in-memory хранилище для всех репозиториев. Таблицы связей
// разделяются между репозиториями так же, как в PostgreSQL.
type DB struct {
	mu sync.RWMutex

	keywordSeq int64
	chatSeq    int64
	listingSeq int64

	keywords     map[int64]*models.Keyword
	chats        map[int64]*models.Chat
	listings     map[string]*models.Listing
	keywordChats map[pair]time.Time
	chatListings map[pair]time.Time

	now func() time.Time
}

func NewDB() *DB {
	return &DB{
		keywords:     make(map[int64]*models.Keyword),
		chats:        make(map[int64]*models.Chat),
		listings:     make(map[string]*models.Listing),
		keywordChats: make(map[pair]time.Time),
		chatListings: make(map[pair]time.Time),
		now:          time.Now,
	}
}

func (db *DB) chatIDsOf(keywordID int64) []int64 {
	ids := make([]int64, 0)

	for p := range db.keywordChats {
		if p.left == keywordID {
			ids = append(ids, p.right)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

func (db *DB) keywordIDsOf(chatID int64) []int64 {
	ids := make([]int64, 0)

	for p := range db.keywordChats {
		if p.right == chatID {
			ids = append(ids, p.left)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

func (db *DB) keywordCopy(k *models.Keyword) *models.Keyword {
	c := *k
	c.RecentItemIDs = append([]string(nil), k.RecentItemIDs...)
	c.ChatIDs = db.chatIDsOf(k.ID)

	return &c
}

func (db *DB) chatCopy(chat *models.Chat) *models.Chat {
	c := *chat
	c.DeliveredItemIDs = append([]string(nil), chat.DeliveredItemIDs...)
	c.KeywordIDs = db.keywordIDsOf(chat.ID)

	return &c
}

func listingCopy(l *models.Listing) *models.Listing {
	c := *l
	return &c
}

func paginate[T any](items []T, page, limit int) models.Page[T] {
	page, limit = models.NormalizePaging(page, limit)

	total := len(items)
	offset := (page - 1) * limit

	if offset > total {
		offset = total
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return models.NewPage(items[offset:end], page, limit, total)
}

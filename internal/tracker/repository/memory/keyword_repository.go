package memory

import (
	"context"
	"sort"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

type KeywordRepository struct {
	db *DB
}

func NewKeywordRepository(db *DB) *KeywordRepository {
	return &KeywordRepository{db: db}
}

func (r *KeywordRepository) FindOrCreate(_ context.Context, searchTerm, sourceLink string) (*models.Keyword, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, k := range r.db.keywords {
		if k.SearchTerm == searchTerm && k.SourceLink == sourceLink {
			return r.db.keywordCopy(k), nil
		}
	}

	r.db.keywordSeq++
	now := r.db.now()

	k := &models.Keyword{
		ID:            r.db.keywordSeq,
		SearchTerm:    searchTerm,
		SourceLink:    sourceLink,
		RecentItemIDs: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.db.keywords[k.ID] = k

	return r.db.keywordCopy(k), nil
}

func (r *KeywordRepository) FindByID(_ context.Context, id int64) (*models.Keyword, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	k, ok := r.db.keywords[id]
	if !ok {
		return nil, &errors.ErrKeywordNotFound{KeywordID: id}
	}

	return r.db.keywordCopy(k), nil
}

func (r *KeywordRepository) FindByChatID(_ context.Context, chatID int64) ([]*models.Keyword, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	result := make([]*models.Keyword, 0)

	for _, id := range r.db.keywordIDsOf(chatID) {
		if k, ok := r.db.keywords[id]; ok {
			result = append(result, r.db.keywordCopy(k))
		}
	}

	return result, nil
}

func (r *KeywordRepository) GetSubscribed(_ context.Context) ([]*models.Keyword, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	result := make([]*models.Keyword, 0)

	for _, k := range r.db.keywords {
		c := r.db.keywordCopy(k)
		if c.HasSubscribers() {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (r *KeywordRepository) AppendRecentItems(_ context.Context, id int64, itemIDs []string, limit int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	k, ok := r.db.keywords[id]
	if !ok {
		return &errors.ErrKeywordNotFound{KeywordID: id}
	}

	k.RecentItemIDs = models.AppendRecent(k.RecentItemIDs, itemIDs, limit)
	k.UpdatedAt = r.db.now()

	return nil
}

func (r *KeywordRepository) AddChat(_ context.Context, keywordID, chatID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.keywords[keywordID]; !ok {
		return &errors.ErrKeywordNotFound{KeywordID: keywordID}
	}

	if _, ok := r.db.chats[chatID]; !ok {
		return &errors.ErrChatNotFound{ChatID: chatID}
	}

	p := pair{left: keywordID, right: chatID}
	if _, ok := r.db.keywordChats[p]; !ok {
		r.db.keywordChats[p] = r.db.now()
	}

	return nil
}

func (r *KeywordRepository) RemoveChat(_ context.Context, keywordID, chatID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p := pair{left: keywordID, right: chatID}
	if _, ok := r.db.keywordChats[p]; !ok {
		return &errors.ErrKeywordNotTracked{ChatID: chatID, KeywordID: keywordID}
	}

	delete(r.db.keywordChats, p)

	return nil
}

func (r *KeywordRepository) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.keywords[id]; !ok {
		return &errors.ErrKeywordNotFound{KeywordID: id}
	}

	delete(r.db.keywords, id)

	for p := range r.db.keywordChats {
		if p.left == id {
			delete(r.db.keywordChats, p)
		}
	}

	return nil
}

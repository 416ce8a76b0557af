package memory

import (
	"context"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

type ChatRepository struct {
	db *DB
}

func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) FindOrCreate(_ context.Context, externalChatID int64) (*models.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, chat := range r.db.chats {
		if chat.ExternalChatID == externalChatID {
			return r.db.chatCopy(chat), nil
		}
	}

	r.db.chatSeq++
	now := r.db.now()

	chat := &models.Chat{
		ID:               r.db.chatSeq,
		ExternalChatID:   externalChatID,
		DeliveredItemIDs: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.db.chats[chat.ID] = chat

	return r.db.chatCopy(chat), nil
}

func (r *ChatRepository) FindByID(_ context.Context, id int64) (*models.Chat, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	chat, ok := r.db.chats[id]
	if !ok {
		return nil, &errors.ErrChatNotFound{ChatID: id}
	}

	return r.db.chatCopy(chat), nil
}

func (r *ChatRepository) FindByExternalID(_ context.Context, externalChatID int64) (*models.Chat, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, chat := range r.db.chats {
		if chat.ExternalChatID == externalChatID {
			return r.db.chatCopy(chat), nil
		}
	}

	return nil, &errors.ErrChatNotFound{ChatID: externalChatID}
}

func (r *ChatRepository) AppendDelivered(_ context.Context, id int64, itemID string, limit int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	chat, ok := r.db.chats[id]
	if !ok {
		return &errors.ErrChatNotFound{ChatID: id}
	}

	chat.DeliveredItemIDs = models.AppendRecent(chat.DeliveredItemIDs, []string{itemID}, limit)
	chat.UpdatedAt = r.db.now()

	return nil
}

package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/central-university-dev/go-listing-tracker/internal/database"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/pkg/txs"
)

var chatColumns = []string{
	"c.id",
	"c.external_chat_id",
	"c.delivered_item_ids",
	"ARRAY(SELECT kc.keyword_id FROM keyword_chats kc WHERE kc.chat_id = c.id ORDER BY kc.keyword_id)",
	"c.created_at",
	"c.updated_at",
}

type ChatRepository struct {
	db *database.PostgresDB
	sq sq.StatementBuilderType
}

func NewChatRepository(db *database.PostgresDB) *ChatRepository {
	return &ChatRepository{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func scanChat(row pgx.Row) (*models.Chat, error) {
	c := &models.Chat{}

	err := row.Scan(&c.ID, &c.ExternalChatID, &c.DeliveredItemIDs, &c.KeywordIDs, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (r *ChatRepository) FindOrCreate(ctx context.Context, externalChatID int64) (*models.Chat, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Insert("chats").
		Columns("external_chat_id").
		Values(externalChatID).
		Suffix("ON CONFLICT (external_chat_id) DO UPDATE SET updated_at = chats.updated_at RETURNING id").
		ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "создание чата", Cause: err}
	}

	var id int64
	if err := querier.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return nil, &customerrors.ErrSQLExecution{Operation: "создание чата", Cause: err}
	}

	return r.FindByID(ctx, id)
}

func (r *ChatRepository) FindByID(ctx context.Context, id int64) (*models.Chat, error) {
	return r.findOne(ctx, sq.Eq{"c.id": id}, id)
}

func (r *ChatRepository) FindByExternalID(ctx context.Context, externalChatID int64) (*models.Chat, error) {
	return r.findOne(ctx, sq.Eq{"c.external_chat_id": externalChatID}, externalChatID)
}

func (r *ChatRepository) findOne(ctx context.Context, where sq.Eq, idForError int64) (*models.Chat, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Select(chatColumns...).From("chats c").Where(where).ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "поиск чата", Cause: err}
	}

	chat, err := scanChat(querier.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &customerrors.ErrChatNotFound{ChatID: idForError}
		}

		return nil, &customerrors.ErrSQLExecution{Operation: "поиск чата", Cause: err}
	}

	return chat, nil
}

func (r *ChatRepository) AppendDelivered(ctx context.Context, id int64, itemID string, limit int) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Update("chats").
		Set("delivered_item_ids", boundedAppend("delivered_item_ids", []string{itemID}, limit)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "обновление истории доставки", Cause: err}
	}

	tag, err := querier.Exec(ctx, query, args...)
	if err != nil {
		return &customerrors.ErrSQLExecution{Operation: "обновление истории доставки", Cause: err}
	}

	if tag.RowsAffected() == 0 {
		return &customerrors.ErrChatNotFound{ChatID: id}
	}

	return nil
}

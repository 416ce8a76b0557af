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

var keywordColumns = []string{
	"k.id",
	"k.search_term",
	"k.source_link",
	"k.recent_item_ids",
	"ARRAY(SELECT kc.chat_id FROM keyword_chats kc WHERE kc.keyword_id = k.id ORDER BY kc.chat_id)",
	"k.created_at",
	"k.updated_at",
}

type KeywordRepository struct {
	db *database.PostgresDB
	sq sq.StatementBuilderType
}

func NewKeywordRepository(db *database.PostgresDB) *KeywordRepository {
	return &KeywordRepository{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func scanKeyword(row pgx.Row) (*models.Keyword, error) {
	k := &models.Keyword{}

	err := row.Scan(&k.ID, &k.SearchTerm, &k.SourceLink, &k.RecentItemIDs, &k.ChatIDs, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return k, nil
}

func (r *KeywordRepository) FindOrCreate(ctx context.Context, searchTerm, sourceLink string) (*models.Keyword, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Insert("keywords").
		Columns("search_term", "source_link").
		Values(searchTerm, sourceLink).
		Suffix("ON CONFLICT (search_term, source_link) DO UPDATE SET updated_at = keywords.updated_at RETURNING id").
		ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "создание ключевого слова", Cause: err}
	}

	var id int64
	if err := querier.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return nil, &customerrors.ErrSQLExecution{Operation: "создание ключевого слова", Cause: err}
	}

	return r.FindByID(ctx, id)
}

func (r *KeywordRepository) FindByID(ctx context.Context, id int64) (*models.Keyword, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Select(keywordColumns...).
		From("keywords k").
		Where(sq.Eq{"k.id": id}).
		ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "поиск ключевого слова", Cause: err}
	}

	k, err := scanKeyword(querier.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &customerrors.ErrKeywordNotFound{KeywordID: id}
		}

		return nil, &customerrors.ErrSQLExecution{Operation: "поиск ключевого слова", Cause: err}
	}

	return k, nil
}

func (r *KeywordRepository) FindByChatID(ctx context.Context, chatID int64) ([]*models.Keyword, error) {
	builder := r.sq.Select(keywordColumns...).
		From("keywords k").
		Join("keyword_chats kc2 ON kc2.keyword_id = k.id").
		Where(sq.Eq{"kc2.chat_id": chatID}).
		OrderBy("k.id")

	return r.list(ctx, builder, "поиск ключевых слов чата")
}

func (r *KeywordRepository) GetSubscribed(ctx context.Context) ([]*models.Keyword, error) {
	builder := r.sq.Select(keywordColumns...).
		From("keywords k").
		Where("EXISTS (SELECT 1 FROM keyword_chats kc2 WHERE kc2.keyword_id = k.id)").
		OrderBy("k.id")

	return r.list(ctx, builder, "поиск ключевых слов с подписчиками")
}

func (r *KeywordRepository) list(ctx context.Context, builder sq.SelectBuilder, operation string) ([]*models.Keyword, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: operation, Cause: err}
	}

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, &customerrors.ErrSQLExecution{Operation: operation, Cause: err}
	}
	defer rows.Close()

	keywords := make([]*models.Keyword, 0)

	for rows.Next() {
		k, err := scanKeyword(rows)
		if err != nil {
			return nil, &customerrors.ErrSQLScan{Entity: "ключевое слово", Cause: err}
		}

		keywords = append(keywords, k)
	}

	if err := rows.Err(); err != nil {
		return nil, &customerrors.ErrSQLExecution{Operation: operation, Cause: err}
	}

	return keywords, nil
}

func (r *KeywordRepository) AppendRecentItems(ctx context.Context, id int64, itemIDs []string, limit int) error {
	if len(itemIDs) == 0 {
		return nil
	}

	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Update("keywords").
		Set("recent_item_ids", boundedAppend("recent_item_ids", itemIDs, limit)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "обновление истории ключевого слова", Cause: err}
	}

	tag, err := querier.Exec(ctx, query, args...)
	if err != nil {
		return &customerrors.ErrSQLExecution{Operation: "обновление истории ключевого слова", Cause: err}
	}

	if tag.RowsAffected() == 0 {
		return &customerrors.ErrKeywordNotFound{KeywordID: id}
	}

	return nil
}

func (r *KeywordRepository) AddChat(ctx context.Context, keywordID, chatID int64) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Insert("keyword_chats").
		Columns("keyword_id", "chat_id").
		Values(keywordID, chatID).
		Suffix("ON CONFLICT (keyword_id, chat_id) DO NOTHING").
		ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "подписка чата на ключевое слово", Cause: err}
	}

	if _, err := querier.Exec(ctx, query, args...); err != nil {
		return &customerrors.ErrSQLExecution{Operation: "подписка чата на ключевое слово", Cause: err}
	}

	return nil
}

func (r *KeywordRepository) RemoveChat(ctx context.Context, keywordID, chatID int64) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Delete("keyword_chats").
		Where(sq.Eq{"keyword_id": keywordID, "chat_id": chatID}).
		ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "отписка чата от ключевого слова", Cause: err}
	}

	tag, err := querier.Exec(ctx, query, args...)
	if err != nil {
		return &customerrors.ErrSQLExecution{Operation: "отписка чата от ключевого слова", Cause: err}
	}

	if tag.RowsAffected() == 0 {
		return &customerrors.ErrKeywordNotTracked{ChatID: chatID, KeywordID: keywordID}
	}

	return nil
}

func (r *KeywordRepository) Delete(ctx context.Context, id int64) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Delete("keywords").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "удаление ключевого слова", Cause: err}
	}

	tag, err := querier.Exec(ctx, query, args...)
	if err != nil {
		return &customerrors.ErrSQLExecution{Operation: "удаление ключевого слова", Cause: err}
	}

	if tag.RowsAffected() == 0 {
		return &customerrors.ErrKeywordNotFound{KeywordID: id}
	}

	return nil
}

// boundedAppend дописывает элементы в конец массива и оставляет последние limit элементов.
func boundedAppend(column string, items []string, limit int) sq.Sqlizer {
	if limit <= 0 {
		return sq.Expr(column+" || ?::text[]", items)
	}

	return sq.Expr(
		"("+column+" || ?::text[])[GREATEST(cardinality("+column+") + ? - ? + 1, 1):]",
		items, len(items), limit,
	)
}

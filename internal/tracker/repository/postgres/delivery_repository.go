package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/central-university-dev/go-listing-tracker/internal/database"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/pkg/txs"
)

type DeliveryRepository struct {
	db *database.PostgresDB
	sq sq.StatementBuilderType
}

func NewDeliveryRepository(db *database.PostgresDB) *DeliveryRepository {
	return &DeliveryRepository{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *DeliveryRepository) CreateMany(ctx context.Context, listingID int64, chatIDs []int64) error {
	if len(chatIDs) == 0 {
		return nil
	}

	querier := txs.GetQuerier(ctx, r.db.Pool)

	builder := r.sq.Insert("chat_listings").Columns("chat_id", "listing_id")
	for _, chatID := range chatIDs {
		builder = builder.Values(chatID, listingID)
	}

	query, args, err := builder.Suffix("ON CONFLICT (chat_id, listing_id) DO NOTHING").ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "сохранение доставок", Cause: err}
	}

	if _, err := querier.Exec(ctx, query, args...); err != nil {
		return &customerrors.ErrSQLExecution{Operation: "сохранение доставок", Cause: err}
	}

	return nil
}

func (r *DeliveryRepository) FindListingsByChat(
	ctx context.Context,
	chatID int64,
	page, limit int,
) (models.Page[*models.Listing], error) {
	where := sq.Eq{"cl.chat_id": chatID}

	count := r.sq.Select("COUNT(*)").From("chat_listings cl").Where(where)
	items := r.sq.Select(listingColumns...).
		From("listings l").
		Join("chat_listings cl ON cl.listing_id = l.id").
		Where(where).
		OrderBy("cl.created_at DESC", "l.id DESC")

	return paginate(ctx, txs.GetQuerier(ctx, r.db.Pool), count, items, page, limit,
		scanListing, "объявление", "поиск объявлений чата")
}

func (r *DeliveryRepository) FindChatsByListing(
	ctx context.Context,
	listingID int64,
	page, limit int,
) (models.Page[*models.Chat], error) {
	where := sq.Eq{"cl.listing_id": listingID}

	count := r.sq.Select("COUNT(*)").From("chat_listings cl").Where(where)
	items := r.sq.Select(chatColumns...).
		From("chats c").
		Join("chat_listings cl ON cl.chat_id = c.id").
		Where(where).
		OrderBy("cl.created_at DESC", "c.id DESC")

	return paginate(ctx, txs.GetQuerier(ctx, r.db.Pool), count, items, page, limit,
		scanChat, "чат", "поиск чатов объявления")
}

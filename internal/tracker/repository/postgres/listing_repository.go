package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/central-university-dev/go-listing-tracker/internal/database"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/pkg/txs"
)

var listingColumns = []string{
	"l.id",
	"l.external_item_id",
	"l.title",
	"l.price",
	"l.condition",
	"l.posted_date",
	"l.source_url",
	"l.image_url",
	"l.status",
	"l.status_changed_at",
	"l.last_checked_at",
	"l.check_count",
	"l.next_check_delay_seconds",
	"l.created_at",
}

type ListingRepository struct {
	db *database.PostgresDB
	sq sq.StatementBuilderType
}

func NewListingRepository(db *database.PostgresDB) *ListingRepository {
	return &ListingRepository{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var (
		l             models.Listing
		status        string
		lastCheckedAt *time.Time
		delaySeconds  int64
	)

	err := row.Scan(
		&l.ID,
		&l.ExternalItemID,
		&l.Title,
		&l.Price,
		&l.Condition,
		&l.PostedDate,
		&l.SourceURL,
		&l.ImageURL,
		&status,
		&l.StatusChangedAt,
		&lastCheckedAt,
		&l.CheckCount,
		&delaySeconds,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = models.ListingStatus(status)
	l.NextCheckDelay = time.Duration(delaySeconds) * time.Second

	if lastCheckedAt != nil {
		l.LastCheckedAt = *lastCheckedAt
	}

	return &l, nil
}

func (r *ListingRepository) Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, bool, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	status := listing.Status
	if status == "" {
		status = models.StatusActive
	}

	query, args, err := r.sq.Insert("listings AS l").
		Columns(
			"external_item_id", "title", "price", "condition", "posted_date",
			"source_url", "image_url", "status", "next_check_delay_seconds",
		).
		Values(
			listing.ExternalItemID, listing.Title, listing.Price, listing.Condition, listing.PostedDate,
			listing.SourceURL, listing.ImageURL, string(status), int64(listing.NextCheckDelay/time.Second),
		).
		Suffix("ON CONFLICT (external_item_id) DO NOTHING RETURNING " + joinColumns(listingColumns)).
		ToSql()
	if err != nil {
		return nil, false, &customerrors.ErrBuildSQLQuery{Operation: "сохранение объявления", Cause: err}
	}

	stored, err := scanListing(querier.QueryRow(ctx, query, args...))
	if err == nil {
		return stored, true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, &customerrors.ErrSQLExecution{Operation: "сохранение объявления", Cause: err}
	}

	existing, err := r.FindByExternalID(ctx, listing.ExternalItemID)
	if err != nil {
		return nil, false, err
	}

	return existing, false, nil
}

func (r *ListingRepository) FindByExternalID(ctx context.Context, externalItemID string) (*models.Listing, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Select(listingColumns...).
		From("listings l").
		Where(sq.Eq{"l.external_item_id": externalItemID}).
		ToSql()
	if err != nil {
		return nil, &customerrors.ErrBuildSQLQuery{Operation: "поиск объявления", Cause: err}
	}

	listing, err := scanListing(querier.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &customerrors.ErrListingNotFound{ExternalItemID: externalItemID}
		}

		return nil, &customerrors.ErrSQLExecution{Operation: "поиск объявления", Cause: err}
	}

	return listing, nil
}

func (r *ListingRepository) UpdateStatus(
	ctx context.Context,
	externalItemID string,
	status models.ListingStatus,
	changedAt time.Time,
) error {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Update("listings").
		Set("status", string(status)).
		Set("status_changed_at", changedAt).
		Set("last_checked_at", changedAt).
		Where(sq.Eq{"external_item_id": externalItemID}).
		ToSql()
	if err != nil {
		return &customerrors.ErrBuildSQLQuery{Operation: "обновление статуса объявления", Cause: err}
	}

	tag, err := querier.Exec(ctx, query, args...)
	if err != nil {
		return &customerrors.ErrSQLExecution{Operation: "обновление статуса объявления", Cause: err}
	}

	if tag.RowsAffected() == 0 {
		return &customerrors.ErrListingNotFound{ExternalItemID: externalItemID}
	}

	return nil
}

func (r *ListingRepository) IncrementCheckCount(
	ctx context.Context,
	externalItemID string,
	nextDelay time.Duration,
	checkedAt time.Time,
) (int, error) {
	querier := txs.GetQuerier(ctx, r.db.Pool)

	query, args, err := r.sq.Update("listings").
		Set("check_count", sq.Expr("check_count + 1")).
		Set("next_check_delay_seconds", int64(nextDelay/time.Second)).
		Set("last_checked_at", checkedAt).
		Where(sq.Eq{"external_item_id": externalItemID}).
		Suffix("RETURNING check_count").
		ToSql()
	if err != nil {
		return 0, &customerrors.ErrBuildSQLQuery{Operation: "обновление счетчика проверок", Cause: err}
	}

	var count int
	if err := querier.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &customerrors.ErrListingNotFound{ExternalItemID: externalItemID}
		}

		return 0, &customerrors.ErrSQLExecution{Operation: "обновление счетчика проверок", Cause: err}
	}

	return count, nil
}

func (r *ListingRepository) FindByStatus(
	ctx context.Context,
	status models.ListingStatus,
	page, limit int,
) (models.Page[*models.Listing], error) {
	where := sq.And{}
	if status != "" {
		where = append(where, sq.Eq{"l.status": string(status)})
	}

	count := r.sq.Select("COUNT(*)").From("listings l").Where(where)
	items := r.sq.Select(listingColumns...).
		From("listings l").
		Where(where).
		OrderBy("l.status_changed_at DESC", "l.id DESC")

	return paginate(ctx, txs.GetQuerier(ctx, r.db.Pool), count, items, page, limit,
		scanListing, "объявление", "поиск объявлений по статусу")
}

func paginate[T any](
	ctx context.Context,
	querier txs.Querier,
	countBuilder, itemsBuilder sq.SelectBuilder,
	page, limit int,
	scan func(pgx.Row) (T, error),
	entity, operation string,
) (models.Page[T], error) {
	page, limit = models.NormalizePaging(page, limit)

	total, err := countRows(ctx, querier, countBuilder, operation)
	if err != nil {
		return models.Page[T]{}, err
	}

	query, args, err := itemsBuilder.
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit)).
		ToSql()
	if err != nil {
		return models.Page[T]{}, &customerrors.ErrBuildSQLQuery{Operation: operation, Cause: err}
	}

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return models.Page[T]{}, &customerrors.ErrSQLExecution{Operation: operation, Cause: err}
	}
	defer rows.Close()

	items := make([]T, 0, limit)

	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return models.Page[T]{}, &customerrors.ErrSQLScan{Entity: entity, Cause: err}
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return models.Page[T]{}, &customerrors.ErrSQLExecution{Operation: operation, Cause: err}
	}

	return models.NewPage(items, page, limit, total), nil
}

func countRows(ctx context.Context, querier txs.Querier, builder sq.SelectBuilder, operation string) (int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, &customerrors.ErrBuildSQLQuery{Operation: operation, Cause: err}
	}

	var total int
	if err := querier.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, &customerrors.ErrSQLExecution{Operation: operation, Cause: err}
	}

	return total, nil
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}

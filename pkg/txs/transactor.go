package txs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor выполняет функцию в рамках одной транзакции.
// Репозитории получают транзакцию из контекста через GetQuerier.
type Transactor interface {
	WithTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error
}

type TxManager struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewTxManager(db *pgxpool.Pool, logger *slog.Logger) *TxManager {
	return &TxManager{
		db:     db,
		logger: logger,
	}
}

func (t *TxManager) WithTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	// Вложенный вызов переиспользует уже открытую транзакцию.
	if InTransaction(ctx) {
		return txFunc(ctx)
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		t.logger.Error("Ошибка при начале транзакции", "error", err)
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Паника в транзакции, выполняем rollback", "panic", r)

			_ = tx.Rollback(context.WithoutCancel(ctx))

			panic(r)
		}
	}()

	if err := txFunc(injectTx(ctx, tx)); err != nil {
		// Rollback должен пройти даже после отмены контекста запроса.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			t.logger.Error("Ошибка при rollback транзакции", "error", rbErr)
			return fmt.Errorf("ошибка в транзакции: %w, ошибка rollback: %v", err, rbErr)
		}

		return err
	}

	if err := tx.Commit(ctx); err != nil {
		t.logger.Error("Ошибка при commit транзакции", "error", err)
		return fmt.Errorf("ошибка при commit транзакции: %w", err)
	}

	return nil
}

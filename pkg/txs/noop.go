package txs

import "context"

// NoopTxManager выполняет функцию без транзакции. Используется с in-memory хранилищем.
type NoopTxManager struct{}

func (NoopTxManager) WithTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	return txFunc(ctx)
}

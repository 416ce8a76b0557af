package queue

import (
	"context"
	"time"
)

// Store хранит задачи очереди. Реализации должны выполнять каждую операцию атомарно.
type Store interface {
	// Add сохраняет задачу. Если задан ключ и задача с этим ключом еще не завершена,
	// возвращает существующую задачу и created=false.
	Add(ctx context.Context, job *Job) (stored *Job, created bool, err error)
	// ClaimDue переводит до limit задач с RunAt <= now в состояние active.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Job, error)
	// Requeue возвращает активную задачу в ожидание до runAt, ключ сохраняется.
	// Если job.Claim уже не текущий, возвращает ErrJobClaimLost и ничего не меняет.
	Requeue(ctx context.Context, job *Job, runAt time.Time) error
	// Finish завершает задачу, освобождает ключ и хранит запись retention.
	// Проверка Claim такая же, как в Requeue.
	Finish(ctx context.Context, job *Job, state State, retention time.Duration) error
	Get(ctx context.Context, id string) (*Job, error)
	HasKey(ctx context.Context, key string) (bool, error)
	// RecoverStale возвращает в ожидание задачи, захваченные раньше claimedBefore.
	RecoverStale(ctx context.Context, claimedBefore, now time.Time) (int, error)
	Counts(ctx context.Context, now time.Time) (map[State]int, error)
}

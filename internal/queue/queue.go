package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

const (
	outcomeDone        = "done"
	outcomeRescheduled = "rescheduled"
	outcomeRetry       = "retry"
	outcomeFailed      = "failed"
	outcomeInterrupted = "interrupted"
)

type Handler interface {
	Handle(ctx context.Context, job *Job) (Result, error)
}

type HandlerFunc func(ctx context.Context, job *Job) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, job *Job) (Result, error) {
	return f(ctx, job)
}

// FailureHook вызывается один раз, когда задача исчерпала все попытки.
type FailureHook func(ctx context.Context, job *Job, cause error) error

type registration struct {
	handler        Handler
	onFinalFailure FailureHook
}

// Queue - очередь отложенных задач с пулом воркеров. Обработчики регистрируются
// явно до запуска; перезапуск задачи выполняет очередь по Result обработчика.
type Queue struct {
	store  Store
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	workers           int
	pollInterval      time.Duration
	retention         time.Duration
	visibilityTimeout time.Duration
	backoffInitial    time.Duration
	backoffMax        time.Duration

	mu       sync.RWMutex
	handlers map[string]registration

	wake   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(q *Queue) {
		q.retention = d
	}
}

func WithVisibilityTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.visibilityTimeout = d
		}
	}
}

func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(q *Queue) {
		if initial > 0 {
			q.backoffInitial = initial
		}

		if maxInterval > 0 {
			q.backoffMax = maxInterval
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(q *Queue) {
		q.tracer = tracer
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Queue {
	q := &Queue{
		store:             store,
		logger:            logger,
		tracer:            otel.Tracer("github.com/central-university-dev/go-listing-tracker/internal/queue"),
		now:               time.Now,
		workers:           4,
		pollInterval:      500 * time.Millisecond,
		retention:         time.Hour,
		visibilityTimeout: 5 * time.Minute,
		backoffInitial:    time.Second,
		backoffMax:        time.Minute,
		handlers:          make(map[string]registration),
		wake:              make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Register связывает тип задачи с обработчиком. onFinalFailure может быть nil.
func (q *Queue) Register(jobType string, handler Handler, onFinalFailure FailureHook) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[jobType] = registration{handler: handler, onFinalFailure: onFinalFailure}
}

func (q *Queue) registration(jobType string) (registration, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	reg, ok := q.handlers[jobType]

	return reg, ok
}

func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, opts Options) (*Handle, error) {
	if _, ok := q.registration(jobType); !ok {
		return nil, &domainerrors.ErrUnknownJobType{JobType: jobType}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &domainerrors.ErrInvalidPayload{JobType: jobType, Cause: err}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	now := q.now()

	job := &Job{
		Type:        jobType,
		Key:         opts.Key,
		Payload:     data,
		MaxAttempts: maxAttempts,
		RunAt:       now.Add(opts.Delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, created, err := q.store.Add(ctx, job)
	if err != nil {
		return nil, errors.Wrap(err, "enqueue")
	}

	metrics.RecordEnqueue(jobType, !created)

	if created {
		q.logger.Debug("Задача поставлена в очередь",
			"jobId", stored.ID,
			"jobType", jobType,
			"key", opts.Key,
			"delay", opts.Delay.String(),
		)

		if opts.Delay <= 0 {
			q.notify()
		}
	}

	return &Handle{
		ID:        stored.ID,
		Type:      stored.Type,
		Key:       stored.Key,
		RunAt:     stored.RunAt,
		Duplicate: !created,
	}, nil
}

// Pending сообщает, есть ли незавершенная задача с ключом key.
func (q *Queue) Pending(ctx context.Context, key string) (bool, error) {
	return q.store.HasKey(ctx, key)
}

func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	return q.store.Get(ctx, id)
}

func (q *Queue) Stats(ctx context.Context) (map[State]int, error) {
	counts, err := q.store.Counts(ctx, q.now())
	if err != nil {
		return nil, err
	}

	for state, n := range counts {
		metrics.UpdateQueueDepth(string(state), float64(n))
	}

	return counts, nil
}

func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	q.logger.Info("Запуск очереди задач",
		"workers", q.workers,
		"pollInterval", q.pollInterval.String(),
	)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)

		go func(workerID int) {
			defer q.wg.Done()
			q.worker(ctx, workerID)
		}(i + 1)
	}

	q.wg.Add(1)

	go func() {
		defer q.wg.Done()
		q.maintain(ctx)
	}()
}

func (q *Queue) Stop() {
	q.logger.Info("Остановка очереди задач")

	if q.cancel != nil {
		q.cancel()
	}

	q.wg.Wait()
}

// RunDue синхронно выполняет задачи, срок которых наступил, за один проход.
// Задачи, перепланированные во время прохода, не выполняются повторно.
func (q *Queue) RunDue(ctx context.Context) (int, error) {
	jobs, err := q.store.ClaimDue(ctx, q.now(), 0)
	if err != nil {
		return 0, errors.Wrap(err, "claim due jobs")
	}

	for _, job := range jobs {
		q.process(ctx, job)
	}

	return len(jobs), nil
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) worker(ctx context.Context, workerID int) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-q.wake:
		}

		for ctx.Err() == nil {
			jobs, err := q.store.ClaimDue(ctx, q.now(), 1)
			if err != nil {
				if ctx.Err() == nil {
					q.logger.Error("Ошибка при получении задач из очереди", "worker", workerID, "error", err)
				}

				break
			}

			if len(jobs) == 0 {
				break
			}

			q.process(ctx, jobs[0])
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}

		timer.Reset(q.pollInterval)
	}
}

func (q *Queue) maintain(ctx context.Context) {
	ticker := time.NewTicker(q.visibilityTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := q.now()

			recovered, err := q.store.RecoverStale(ctx, now.Add(-q.visibilityTimeout), now)
			if err != nil {
				q.logger.Error("Ошибка при восстановлении зависших задач", "error", err)
			} else if recovered > 0 {
				q.logger.Warn("Зависшие задачи возвращены в очередь", "count", recovered)
			}

			if _, err := q.Stats(ctx); err != nil {
				q.logger.Error("Ошибка при обновлении метрик очереди", "error", err)
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, job *Job) {
	start := q.now()

	reg, ok := q.registration(job.Type)
	if !ok {
		err := &domainerrors.ErrUnknownJobType{JobType: job.Type}
		q.logger.Error("Задача без обработчика", "jobId", job.ID, "error", err)

		job.LastError = err.Error()
		q.finish(ctx, job, StateFailed)
		metrics.RecordJob(job.Type, outcomeFailed, 0)

		return
	}

	spanCtx, span := q.tracer.Start(ctx, "queue.job "+job.Type, trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.type", job.Type),
		attribute.String("job.key", job.Key),
	))
	defer span.End()

	job.Attempt++
	span.SetAttributes(attribute.Int("job.attempt", job.Attempt))

	result, err := q.invoke(spanCtx, reg.handler, job)

	// Состояние задачи сохраняется даже если сервис уже останавливается.
	storeCtx := context.WithoutCancel(ctx)
	job.UpdatedAt = q.now()
	duration := job.UpdatedAt.Sub(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		q.handleFailure(storeCtx, ctx.Err() != nil, reg, job, err, duration)

		return
	}

	if delay, again := result.Rescheduled(); again {
		job.Attempt = 0
		job.LastError = ""

		if err := q.store.Requeue(storeCtx, job, job.UpdatedAt.Add(delay)); err != nil {
			q.logStoreError("Ошибка при перепланировании задачи", job, err)
		}

		metrics.RecordJob(job.Type, outcomeRescheduled, duration)

		return
	}

	q.finish(storeCtx, job, StateCompleted)
	metrics.RecordJob(job.Type, outcomeDone, duration)
}

func (q *Queue) handleFailure(
	ctx context.Context,
	interrupted bool,
	reg registration,
	job *Job,
	cause error,
	duration time.Duration,
) {
	job.LastError = cause.Error()

	// Остановка сервиса не расходует попытку.
	if interrupted {
		job.Attempt--

		if err := q.store.Requeue(ctx, job, job.UpdatedAt); err != nil {
			q.logStoreError("Ошибка при возврате прерванной задачи", job, err)
		}

		metrics.RecordJob(job.Type, outcomeInterrupted, duration)

		return
	}

	if job.Attempt < job.MaxAttempts {
		delay := q.retryDelay(job.Attempt)

		q.logger.Warn("Ошибка при выполнении задачи, повтор",
			"jobId", job.ID,
			"jobType", job.Type,
			"attempt", job.Attempt,
			"maxAttempts", job.MaxAttempts,
			"retryIn", delay.String(),
			"error", cause,
		)

		if err := q.store.Requeue(ctx, job, job.UpdatedAt.Add(delay)); err != nil {
			q.logStoreError("Ошибка при возврате задачи в очередь", job, err)
		}

		metrics.RecordJob(job.Type, outcomeRetry, duration)

		return
	}

	q.logger.Error("Задача исчерпала попытки",
		"jobId", job.ID,
		"jobType", job.Type,
		"key", job.Key,
		"attempts", job.Attempt,
		"error", cause,
	)

	// Задачу уже перезапустил другой обработчик, итог решит он.
	if !q.finish(ctx, job, StateFailed) {
		return
	}

	metrics.RecordJob(job.Type, outcomeFailed, duration)

	if reg.onFinalFailure != nil {
		if err := reg.onFinalFailure(ctx, job, cause); err != nil {
			q.logger.Error("Ошибка в обработчике окончательного сбоя", "jobId", job.ID, "jobType", job.Type, "error", err)
		}
	}
}

// finish возвращает false, если захват задачи утерян и запись не изменена.
func (q *Queue) finish(ctx context.Context, job *Job, state State) bool {
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = q.now()
	}

	if err := q.store.Finish(ctx, job, state, q.retention); err != nil {
		q.logStoreError("Ошибка при завершении задачи", job, err)

		return !errors.Is(err, &domainerrors.ErrJobClaimLost{})
	}

	return true
}

func (q *Queue) logStoreError(msg string, job *Job, err error) {
	if errors.Is(err, &domainerrors.ErrJobClaimLost{}) {
		q.logger.Warn("Задача была возвращена в очередь по таймауту, результат отброшен",
			"jobId", job.ID,
			"jobType", job.Type,
			"key", job.Key,
		)

		return
	}

	q.logger.Error(msg, "jobId", job.ID, "jobType", job.Type, "error", err)
}

func (q *Queue) invoke(ctx context.Context, handler Handler, job *Job) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника в обработчике задачи %s: %v", job.Type, r)
		}
	}()

	return handler.Handle(ctx, job)
}

// retryDelay возвращает экспоненциальную задержку перед попыткой attempt+1.
func (q *Queue) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.backoffInitial
	b.MaxInterval = q.backoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}

	return delay
}

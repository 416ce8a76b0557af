package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

// Задачи с ключом дедупликации регистрируются в hash keys только если ключ свободен.
var addScript = redis.NewScript(`
if ARGV[1] ~= '' then
  local existing = redis.call('HGET', KEYS[1], ARGV[1])
  if existing then
    return existing
  end
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
redis.call('SET', ARGV[5] .. ARGV[2], ARGV[3])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[2])
return ARGV[2]
`)

// Каждый захват получает новый токен в hash claims. Requeue и Finish со старым
// токеном ничего не меняют и возвращают 0.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local data = redis.call('GET', ARGV[3] .. id)
  if data then
    local token = redis.call('INCR', KEYS[3])
    redis.call('ZADD', KEYS[2], ARGV[1], id)
    redis.call('HSET', KEYS[4], id, token)
    table.insert(out, data)
    table.insert(out, tostring(token))
  end
end
return out
`)

var requeueScript = redis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then
  return 0
end
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('SET', ARGV[3] .. ARGV[1], ARGV[4])
redis.call('ZADD', KEYS[2], ARGV[5], ARGV[1])
return 1
`)

var finishScript = redis.NewScript(`
if redis.call('HGET', KEYS[5], ARGV[1]) ~= ARGV[7] then
  return 0
end
redis.call('HDEL', KEYS[5], ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZREM', KEYS[4], ARGV[1])
if ARGV[2] ~= '' and redis.call('HGET', KEYS[2], ARGV[2]) == ARGV[1] then
  redis.call('HDEL', KEYS[2], ARGV[2])
end
if tonumber(ARGV[5]) > 0 then
  redis.call('SET', ARGV[3] .. ARGV[1], ARGV[4], 'PX', ARGV[5])
  redis.call('ZADD', KEYS[3], ARGV[6], ARGV[1])
else
  redis.call('DEL', ARGV[3] .. ARGV[1])
end
redis.call('ZREMRANGEBYSCORE', KEYS[3], '-inf', ARGV[6] - ARGV[5])
return 1
`)

var recoverScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('HDEL', KEYS[3], id)
  redis.call('ZADD', KEYS[2], ARGV[2], id)
end
return #ids
`)

// RedisStore хранит задачи в Redis: тело задачи в строковом ключе,
// ожидающие задачи в sorted set по времени запуска, захваченные по времени захвата.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisClient(ctx context.Context, redisURL, password string, db int, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ошибка при подключении к Redis: %w", err)
	}

	logger.Info("Соединение с Redis для очереди задач успешно установлено")

	return client, nil
}

func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "queue"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) jobPrefix() string {
	return s.prefix + ":job:"
}

func (s *RedisStore) Add(ctx context.Context, job *Job) (*Job, bool, error) {
	seq, err := s.client.Incr(ctx, s.key("seq")).Result()
	if err != nil {
		return nil, false, fmt.Errorf("ошибка при генерации идентификатора задачи: %w", err)
	}

	stored := *job
	stored.ID = strconv.FormatInt(seq, 10)
	stored.State = StateWaiting

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка при сериализации задачи: %w", err)
	}

	id, err := addScript.Run(ctx, s.client,
		[]string{s.key("keys"), s.key("waiting")},
		stored.Key, stored.ID, data, stored.RunAt.UnixMilli(), s.jobPrefix(),
	).Text()
	if err != nil {
		return nil, false, fmt.Errorf("ошибка при добавлении задачи в Redis: %w", err)
	}

	if id != stored.ID {
		existing, err := s.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}

		return existing, false, nil
	}

	return &stored, true, nil
}

func (s *RedisStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	raw, err := claimScript.Run(ctx, s.client,
		[]string{s.key("waiting"), s.key("active"), s.key("claimseq"), s.key("claims")},
		now.UnixMilli(), limit, s.jobPrefix(),
	).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("ошибка при захвате задач из Redis: %w", err)
	}

	// Ответ скрипта - пары (тело задачи, токен захвата).
	jobs := make([]*Job, 0, len(raw)/2)

	for i := 0; i+1 < len(raw); i += 2 {
		job := &Job{}
		if err := json.Unmarshal([]byte(raw[i]), job); err != nil {
			s.logger.Error("Повреждена запись задачи в Redis", "error", err)
			continue
		}

		job.State = StateActive
		job.Claim = raw[i+1]
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (s *RedisStore) Requeue(ctx context.Context, job *Job, runAt time.Time) error {
	stored := *job
	stored.State = StateWaiting
	stored.RunAt = runAt

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации задачи: %w", err)
	}

	applied, err := requeueScript.Run(ctx, s.client,
		[]string{s.key("active"), s.key("waiting"), s.key("claims")},
		job.ID, job.Claim, s.jobPrefix(), data, runAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("ошибка при возврате задачи в очередь: %w", err)
	}

	if applied == 0 {
		return &domainerrors.ErrJobClaimLost{JobID: job.ID}
	}

	return nil
}

func (s *RedisStore) Finish(ctx context.Context, job *Job, state State, retention time.Duration) error {
	stored := *job
	stored.State = state

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации задачи: %w", err)
	}

	applied, err := finishScript.Run(ctx, s.client,
		[]string{s.key("active"), s.key("keys"), s.key(string(state)), s.key("waiting"), s.key("claims")},
		job.ID, job.Key, s.jobPrefix(), data, retention.Milliseconds(), job.UpdatedAt.UnixMilli(), job.Claim,
	).Int()
	if err != nil {
		return fmt.Errorf("ошибка при завершении задачи: %w", err)
	}

	if applied == 0 {
		return &domainerrors.ErrJobClaimLost{JobID: job.ID}
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.Get(ctx, s.jobPrefix()+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &domainerrors.ErrJobNotFound{JobID: id}
		}

		return nil, fmt.Errorf("ошибка при получении задачи из Redis: %w", err)
	}

	job := &Job{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("ошибка при десериализации задачи: %w", err)
	}

	if job.State == StateWaiting {
		if err := s.client.ZScore(ctx, s.key("active"), id).Err(); err == nil {
			job.State = StateActive
		}
	}

	return job, nil
}

func (s *RedisStore) HasKey(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.key("keys"), key).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка при проверке ключа задачи: %w", err)
	}

	return ok, nil
}

func (s *RedisStore) RecoverStale(ctx context.Context, claimedBefore, now time.Time) (int, error) {
	n, err := recoverScript.Run(ctx, s.client,
		[]string{s.key("active"), s.key("waiting"), s.key("claims")},
		claimedBefore.UnixMilli(), now.UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("ошибка при восстановлении зависших задач: %w", err)
	}

	return n, nil
}

func (s *RedisStore) Counts(ctx context.Context, now time.Time) (map[State]int, error) {
	nowScore := strconv.FormatInt(now.UnixMilli(), 10)

	var (
		ready, total, active, completed, failed *redis.IntCmd
	)

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		ready = pipe.ZCount(ctx, s.key("waiting"), "-inf", nowScore)
		total = pipe.ZCard(ctx, s.key("waiting"))
		active = pipe.ZCard(ctx, s.key("active"))
		completed = pipe.ZCard(ctx, s.key(string(StateCompleted)))
		failed = pipe.ZCard(ctx, s.key(string(StateFailed)))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при подсчете задач: %w", err)
	}

	return map[State]int{
		StateWaiting:   int(ready.Val()),
		StateDelayed:   int(total.Val() - ready.Val()),
		StateActive:    int(active.Val()),
		StateCompleted: int(completed.Val()),
		StateFailed:    int(failed.Val()),
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

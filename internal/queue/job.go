package queue

import (
	"encoding/json"
	"time"

	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job - запись задачи в очереди. Attempt считает попытки текущего запуска
// и сбрасывается при перепланировании.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Key         string          `json:"key,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"maxAttempts"`
	RunAt       time.Time       `json:"runAt"`
	State       State           `json:"state"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	// Claim выдается при захвате. Requeue и Finish принимаются только с текущим Claim.
	Claim string `json:"-"`
}

func (j *Job) IsLastAttempt() bool {
	return j.Attempt >= j.MaxAttempts
}

// Decode разбирает полезную нагрузку задачи в значение типа T.
func Decode[T any](job *Job) (T, error) {
	var payload T

	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return payload, &domainerrors.ErrInvalidPayload{JobType: job.Type, Cause: err}
	}

	return payload, nil
}

type Options struct {
	Delay       time.Duration
	MaxAttempts int
	// Key включает дедупликацию: пока задача с таким ключом ожидает или выполняется,
	// повторная постановка возвращает существующую задачу.
	Key string
}

type Handle struct {
	ID        string
	Type      string
	Key       string
	RunAt     time.Time
	Duplicate bool
}

// Result - итог работы обработчика: завершить задачу или перезапустить ее через delay.
type Result struct {
	reschedule bool
	delay      time.Duration
}

func Done() Result {
	return Result{}
}

func Reschedule(delay time.Duration) Result {
	if delay < 0 {
		delay = 0
	}

	return Result{reschedule: true, delay: delay}
}

func (r Result) Rescheduled() (time.Duration, bool) {
	return r.delay, r.reschedule
}

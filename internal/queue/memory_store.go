package queue

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
)

type memoryEntry struct {
	job       Job
	seq       int64
	claimedAt time.Time
	claim     string
	expiresAt time.Time
}

// MemoryStore - хранилище задач в памяти процесса. Завершенные записи
// удаляются при следующем ClaimDue или Counts после истечения срока хранения.
type MemoryStore struct {
	mu     sync.Mutex
	seq    int64
	claims int64
	jobs   map[string]*memoryEntry
	keys map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*memoryEntry),
		keys: make(map[string]string),
	}
}

func (s *MemoryStore) Add(_ context.Context, job *Job) (*Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Key != "" {
		if id, ok := s.keys[job.Key]; ok {
			if entry, ok := s.jobs[id]; ok {
				existing := entry.job
				return &existing, false, nil
			}
		}
	}

	s.seq++

	stored := *job
	stored.ID = strconv.FormatInt(s.seq, 10)
	stored.State = StateWaiting

	s.jobs[stored.ID] = &memoryEntry{job: stored, seq: s.seq}

	if stored.Key != "" {
		s.keys[stored.Key] = stored.ID
	}

	result := stored

	return &result, true, nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(now)

	due := make([]*memoryEntry, 0)

	for _, entry := range s.jobs {
		if entry.job.State == StateWaiting && !entry.job.RunAt.After(now) {
			due = append(due, entry)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].job.RunAt.Equal(due[j].job.RunAt) {
			return due[i].seq < due[j].seq
		}

		return due[i].job.RunAt.Before(due[j].job.RunAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*Job, 0, len(due))

	for _, entry := range due {
		s.claims++

		entry.job.State = StateActive
		entry.claimedAt = now
		entry.claim = strconv.FormatInt(s.claims, 10)

		job := entry.job
		job.Claim = entry.claim
		claimed = append(claimed, &job)
	}

	return claimed, nil
}

func (s *MemoryStore) Requeue(_ context.Context, job *Job, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.claimed(job)
	if err != nil {
		return err
	}

	entry.job = *job
	entry.job.Claim = ""
	entry.job.State = StateWaiting
	entry.job.RunAt = runAt
	entry.claimedAt = time.Time{}
	entry.claim = ""

	return nil
}

func (s *MemoryStore) Finish(_ context.Context, job *Job, state State, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.claimed(job)
	if err != nil {
		return err
	}

	entry.claim = ""

	if job.Key != "" && s.keys[job.Key] == job.ID {
		delete(s.keys, job.Key)
	}

	if retention <= 0 {
		delete(s.jobs, job.ID)
		return nil
	}

	entry.job = *job
	entry.job.Claim = ""
	entry.job.State = state
	entry.expiresAt = job.UpdatedAt.Add(retention)

	return nil
}

func (s *MemoryStore) claimed(job *Job) (*memoryEntry, error) {
	entry, ok := s.jobs[job.ID]
	if !ok {
		return nil, &domainerrors.ErrJobNotFound{JobID: job.ID}
	}

	if entry.job.State != StateActive || entry.claim != job.Claim {
		return nil, &domainerrors.ErrJobClaimLost{JobID: job.ID}
	}

	return entry, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return nil, &domainerrors.ErrJobNotFound{JobID: id}
	}

	job := entry.job

	return &job, nil
}

func (s *MemoryStore) HasKey(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.keys[key]

	return ok, nil
}

func (s *MemoryStore) RecoverStale(_ context.Context, claimedBefore, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recovered := 0

	for _, entry := range s.jobs {
		if entry.job.State == StateActive && entry.claimedAt.Before(claimedBefore) {
			entry.job.State = StateWaiting
			entry.job.RunAt = now
			entry.claimedAt = time.Time{}
			entry.claim = ""
			recovered++
		}
	}

	return recovered, nil
}

func (s *MemoryStore) Counts(_ context.Context, now time.Time) (map[State]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(now)

	counts := map[State]int{
		StateWaiting:   0,
		StateDelayed:   0,
		StateActive:    0,
		StateCompleted: 0,
		StateFailed:    0,
	}

	for _, entry := range s.jobs {
		state := entry.job.State
		if state == StateWaiting && entry.job.RunAt.After(now) {
			state = StateDelayed
		}

		counts[state]++
	}

	return counts, nil
}

func (s *MemoryStore) purgeExpired(now time.Time) {
	for id, entry := range s.jobs {
		if entry.job.State != StateCompleted && entry.job.State != StateFailed {
			continue
		}

		if !entry.expiresAt.After(now) {
			delete(s.jobs, id)
		}
	}
}

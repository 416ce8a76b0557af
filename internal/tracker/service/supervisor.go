package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

type Armer interface {
	ArmAll(ctx context.Context) (int, error)
}

// Supervisor периодически перезапускает циклы опроса ключевых слов,
// если их задачи пропали из очереди.
type Supervisor struct {
	armer     Armer
	interval  time.Duration
	scheduler *gocron.Scheduler
	logger    *slog.Logger
}

func NewSupervisor(armer Armer, interval time.Duration, logger *slog.Logger) *Supervisor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Supervisor{
		armer:     armer,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger,
	}
}

// Start выполняет первый проход сразу и далее раз в interval.
func (s *Supervisor) Start(ctx context.Context) error {
	s.logger.Info("Запуск супервизора опроса", "interval", s.interval.String())

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.Run(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()

	return nil
}

func (s *Supervisor) Run(ctx context.Context) {
	armed, err := s.armer.ArmAll(ctx)
	if err != nil {
		s.logger.Error("Ошибка при перезапуске циклов опроса", "error", err)
		return
	}

	if armed > 0 {
		s.logger.Info("Перезапущены циклы опроса", "count", armed)
	}
}

func (s *Supervisor) Stop() {
	s.logger.Info("Остановка супервизора опроса")
	s.scheduler.Stop()
}

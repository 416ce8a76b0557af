package tasks

import (
	"context"
	"errors"

	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
)

// handleStatusPoll проверяет объявление и перезапускает себя, пока оно активно.
func (p *Pipeline) handleStatusPoll(ctx context.Context, job *queue.Job) (queue.Result, error) {
	payload, err := queue.Decode[StatusPollPayload](job)
	if err != nil {
		return queue.Done(), err
	}

	logger := p.logger.With("jobId", job.ID, "externalItemId", payload.ExternalItemID)

	if err := p.sleep(ctx, p.settings.StatusPollPacing); err != nil {
		return queue.Done(), err
	}

	listing, err := p.listings.FindByExternalID(ctx, payload.ExternalItemID)
	if err != nil {
		if errors.Is(err, &customerrors.ErrListingNotFound{}) {
			logger.Warn("Объявление не найдено, проверка статуса остановлена")
			return queue.Done(), nil
		}

		return queue.Done(), err
	}

	if !listing.IsActive() {
		return queue.Done(), nil
	}

	status, err := p.statuses.GetStatus(ctx, listing.SourceURL)
	if err != nil {
		return queue.Done(), err
	}

	now := p.now()

	if status != models.StatusActive {
		if status != models.StatusReserved {
			status = models.StatusSold
		}

		if err := p.listings.UpdateStatus(ctx, listing.ExternalItemID, status, now); err != nil {
			return queue.Done(), err
		}

		metrics.RecordStatusTransition(string(status))
		logger.Info("Статус объявления изменился", "status", status, "checkCount", listing.CheckCount)

		return queue.Done(), nil
	}

	if listing.CheckCount > p.settings.StatusMaxChecks {
		if err := p.listings.UpdateStatus(ctx, listing.ExternalItemID, models.StatusNotTracking, now); err != nil {
			return queue.Done(), err
		}

		metrics.RecordStatusTransition(string(models.StatusNotTracking))
		logger.Info("Достигнут предел проверок, отслеживание остановлено", "checkCount", listing.CheckCount)

		return queue.Done(), nil
	}

	delay := models.NextCheckDelay(listing.CheckCount)

	if _, err := p.listings.IncrementCheckCount(ctx, listing.ExternalItemID, delay, now); err != nil {
		return queue.Done(), err
	}

	return queue.Reschedule(delay), nil
}

// onStatusPollExhausted помечает объявление удаленным: проверка статуса
// перестала работать, и объявление считается недоступным.
func (p *Pipeline) onStatusPollExhausted(ctx context.Context, job *queue.Job, cause error) error {
	payload, err := queue.Decode[StatusPollPayload](job)
	if err != nil {
		return err
	}

	err = p.listings.UpdateStatus(ctx, payload.ExternalItemID, models.StatusDeleted, p.now())
	if err != nil && !errors.Is(err, &customerrors.ErrListingNotFound{}) {
		return err
	}

	metrics.RecordStatusTransition(string(models.StatusDeleted))

	p.logger.Warn("Проверка статуса не удалась, объявление помечено удаленным",
		"externalItemId", payload.ExternalItemID,
		"error", cause,
	)

	return nil
}

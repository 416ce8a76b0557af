package tasks

import (
	"context"
	"errors"

	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/notify"
)

const (
	deliverySent    = "sent"
	deliverySkipped = "skipped"
	deliveryFailed  = "failed"
	deliveryDropped = "dropped"
)

func (p *Pipeline) handleDeliver(ctx context.Context, job *queue.Job) (queue.Result, error) {
	payload, err := queue.Decode[DeliverPayload](job)
	if err != nil {
		return queue.Done(), err
	}

	logger := p.logger.With("jobId", job.ID, "chatId", payload.ChatID, "externalItemId", payload.ExternalItemID)

	chat, err := p.chats.FindByID(ctx, payload.ChatID)
	if err != nil {
		if errors.Is(err, &customerrors.ErrChatNotFound{}) {
			logger.Warn("Чат не найден, доставка отменена")
			return queue.Done(), nil
		}

		return queue.Done(), err
	}

	if chat.HasDelivered(payload.ExternalItemID) {
		metrics.RecordDelivery(deliverySkipped)
		logger.Debug("Объявление уже доставлено в чат")

		return queue.Done(), nil
	}

	listing, err := p.listings.FindByExternalID(ctx, payload.ExternalItemID)
	if err != nil {
		return queue.Done(), err
	}

	if err := p.pacer.Wait(ctx); err != nil {
		return queue.Done(), err
	}

	if err := p.sender.Send(ctx, chat.ExternalChatID, notify.FormatListing(listing)); err != nil {
		metrics.RecordDelivery(deliveryFailed)
		return queue.Done(), err
	}

	if err := p.chats.AppendDelivered(ctx, chat.ID, payload.ExternalItemID, p.settings.ChatHistoryCap); err != nil {
		return queue.Done(), err
	}

	metrics.RecordDelivery(deliverySent)
	logger.Info("Объявление доставлено")

	return queue.Done(), nil
}

func (p *Pipeline) onDeliveryExhausted(_ context.Context, job *queue.Job, cause error) error {
	metrics.RecordDelivery(deliveryDropped)

	p.logger.Warn("Доставка не удалась, сообщение отброшено",
		"jobId", job.ID,
		"key", job.Key,
		"error", cause,
	)

	return nil
}

package tasks

import (
	"context"

	"github.com/central-university-dev/go-listing-tracker/internal/queue"
)

func (p *Pipeline) handleEnrich(ctx context.Context, job *queue.Job) (queue.Result, error) {
	payload, err := queue.Decode[EnrichPayload](job)
	if err != nil {
		return queue.Done(), err
	}

	listing := payload.Listing.toListing()
	logger := p.logger.With("jobId", job.ID, "externalItemId", listing.ExternalItemID)

	image, err := p.images.GetImage(ctx, listing.SourceURL)
	if err != nil {
		if !job.IsLastAttempt() {
			return queue.Done(), err
		}

		logger.Warn("Изображение не получено, объявление будет доставлено без него", "error", err)
	}

	listing.ImageURL = image
	listing.NextCheckDelay = p.settings.StatusInitialDelay

	stored, created, err := p.listings.Upsert(ctx, listing)
	if err != nil {
		return queue.Done(), err
	}

	if err := p.deliveries.CreateMany(ctx, stored.ID, payload.ChatIDs); err != nil {
		return queue.Done(), err
	}

	for _, chatID := range payload.ChatIDs {
		_, err := p.queue.Enqueue(ctx, JobDeliver, DeliverPayload{
			ChatID:         chatID,
			ExternalItemID: stored.ExternalItemID,
		}, queue.Options{
			MaxAttempts: p.settings.DeliveryAttempts,
			Key:         DeliveryKey(chatID, stored.ExternalItemID),
		})
		if err != nil {
			return queue.Done(), err
		}
	}

	if stored.IsActive() {
		_, err := p.queue.Enqueue(ctx, JobStatusPoll, StatusPollPayload{ExternalItemID: stored.ExternalItemID}, queue.Options{
			Delay:       p.settings.StatusInitialDelay,
			MaxAttempts: p.settings.StatusAttempts,
			Key:         StatusKey(stored.ExternalItemID),
		})
		if err != nil {
			return queue.Done(), err
		}
	}

	logger.Debug("Объявление обогащено",
		"created", created,
		"chats", len(payload.ChatIDs),
		"withImage", stored.ImageURL != "",
	)

	return queue.Done(), nil
}

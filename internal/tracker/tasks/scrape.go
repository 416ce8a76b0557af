package tasks

import (
	"context"
	"errors"

	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
)

// handleScrape выполняет один круг опроса ключевого слова и перезапускает себя.
// Ошибки получения выдачи и сохранения не прерывают цикл: он перезапускается
// с тем же интервалом. Цикл завершается, только если слово удалено или у него
// не осталось подписчиков.
func (p *Pipeline) handleScrape(ctx context.Context, job *queue.Job) (queue.Result, error) {
	payload, err := queue.Decode[ScrapePayload](job)
	if err != nil {
		return queue.Done(), err
	}

	logger := p.logger.With("jobId", job.ID, "keywordId", payload.KeywordID)

	keyword, err := p.keywords.FindByID(ctx, payload.KeywordID)
	if err != nil {
		if errors.Is(err, &customerrors.ErrKeywordNotFound{}) {
			logger.Info("Ключевое слово удалено, опрос остановлен")
			return queue.Done(), nil
		}

		logger.Error("Ошибка при загрузке ключевого слова", "error", err)

		return queue.Reschedule(p.settings.ScrapeInterval), nil
	}

	if !keyword.HasSubscribers() {
		logger.Info("У ключевого слова нет подписчиков, опрос остановлен")
		return queue.Done(), nil
	}

	p.dispatchNew(ctx, keyword, p.fetch(ctx, keyword))

	return queue.Reschedule(p.settings.ScrapeInterval), nil
}

func (p *Pipeline) fetch(ctx context.Context, keyword *models.Keyword) []*models.Listing {
	listings, err := p.scraper.Scrape(ctx, keyword.SourceLink, keyword.SearchTerm)
	if err != nil {
		p.logger.Warn("Ошибка при получении выдачи, круг пропущен",
			"keywordId", keyword.ID,
			"searchTerm", keyword.SearchTerm,
			"error", err,
		)

		return nil
	}

	return listings
}

func (p *Pipeline) dispatchNew(ctx context.Context, keyword *models.Keyword, listings []*models.Listing) {
	fresh := models.FilterUnseen(keyword.RecentItemIDs, listings)
	if len(fresh) == 0 {
		return
	}

	firstScrape := keyword.FirstScrape()

	if err := p.keywords.AppendRecentItems(ctx, keyword.ID, models.ExternalIDs(fresh), p.settings.KeywordHistoryCap); err != nil {
		// Без записи в историю объявления будут найдены снова в следующем круге.
		p.logger.Error("Ошибка при обновлении истории ключевого слова", "keywordId", keyword.ID, "error", err)
		return
	}

	if firstScrape {
		p.logger.Info("Первый опрос ключевого слова, объявления только запомнены",
			"keywordId", keyword.ID,
			"count", len(fresh),
		)

		return
	}

	metrics.RecordNewListings(len(fresh))

	for _, listing := range fresh {
		_, err := p.queue.Enqueue(ctx, JobEnrich, EnrichPayload{
			KeywordID: keyword.ID,
			Listing:   snapshotOf(listing),
			ChatIDs:   keyword.ChatIDs,
		}, queue.Options{MaxAttempts: p.settings.EnrichAttempts})
		if err != nil {
			p.logger.Error("Ошибка при постановке задачи обогащения",
				"keywordId", keyword.ID,
				"externalItemId", listing.ExternalItemID,
				"error", err,
			)
		}
	}

	p.logger.Info("Найдены новые объявления", "keywordId", keyword.ID, "count", len(fresh))
}

package tasks

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/central-university-dev/go-listing-tracker/internal/config"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/notify"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/repository"
)

const (
	JobScrape     = "scrape"
	JobEnrich     = "enrich"
	JobDeliver    = "deliver"
	JobStatusPoll = "status_poll"
)

type ListingScraper interface {
	Scrape(ctx context.Context, sourceLink, searchTerm string) ([]*models.Listing, error)
}

type ImageFetcher interface {
	GetImage(ctx context.Context, pageURL string) (string, error)
}

type StatusChecker interface {
	GetStatus(ctx context.Context, pageURL string) (models.ListingStatus, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts queue.Options) (*queue.Handle, error)
}

type Registrar interface {
	Register(jobType string, handler queue.Handler, onFinalFailure queue.FailureHook)
}

type Settings struct {
	ScrapeInterval     time.Duration
	ScrapeAttempts     int
	EnrichAttempts     int
	DeliveryAttempts   int
	StatusAttempts     int
	DeliveryPacing     time.Duration
	StatusInitialDelay time.Duration
	StatusPollPacing   time.Duration
	StatusMaxChecks    int
	KeywordHistoryCap  int
	ChatHistoryCap     int
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ScrapeInterval:     cfg.ScrapeInterval,
		ScrapeAttempts:     cfg.ScrapeAttempts,
		EnrichAttempts:     cfg.EnrichAttempts,
		DeliveryAttempts:   cfg.DeliveryAttempts,
		StatusAttempts:     cfg.StatusAttempts,
		DeliveryPacing:     cfg.DeliveryPacing,
		StatusInitialDelay: cfg.StatusInitialDelay,
		StatusPollPacing:   cfg.StatusPollPacing,
		StatusMaxChecks:    cfg.StatusMaxChecks,
		KeywordHistoryCap:  cfg.KeywordHistoryCap,
		ChatHistoryCap:     cfg.ChatHistoryCap,
	}
}

type Dependencies struct {
	Queue         Enqueuer
	Repositories  *repository.Repositories
	Scraper       ListingScraper
	Images        ImageFetcher
	StatusChecker StatusChecker
	Sender        notify.ChatSender
}

// Pipeline содержит обработчики всех этапов: поиск, обогащение, доставка и
// проверка статуса. Каждый этап - отдельный тип задачи в общей очереди.
type Pipeline struct {
	queue      Enqueuer
	keywords   repository.KeywordRepository
	chats      repository.ChatRepository
	listings   repository.ListingRepository
	deliveries repository.DeliveryRepository

	scraper  ListingScraper
	images   ImageFetcher
	statuses StatusChecker
	sender   notify.ChatSender
	pacer    *rate.Limiter

	settings Settings
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) {
		p.sleep = sleep
	}
}

func NewPipeline(deps Dependencies, settings Settings, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		queue:      deps.Queue,
		keywords:   deps.Repositories.Keywords,
		chats:      deps.Repositories.Chats,
		listings:   deps.Repositories.Listings,
		deliveries: deps.Repositories.Deliveries,
		scraper:    deps.Scraper,
		images:     deps.Images,
		statuses:   deps.StatusChecker,
		sender:     deps.Sender,
		pacer:      newPacer(settings.DeliveryPacing),
		settings:   settings,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Register регистрирует обработчики всех этапов в очереди.
func (p *Pipeline) Register(r Registrar) {
	r.Register(JobScrape, queue.HandlerFunc(p.handleScrape), nil)
	r.Register(JobEnrich, queue.HandlerFunc(p.handleEnrich), nil)
	r.Register(JobDeliver, queue.HandlerFunc(p.handleDeliver), p.onDeliveryExhausted)
	r.Register(JobStatusPoll, queue.HandlerFunc(p.handleStatusPoll), p.onStatusPollExhausted)
}

// ArmScrape запускает цикл опроса для ключевого слова. Повторный вызов,
// пока цикл жив, ничего не меняет.
func (p *Pipeline) ArmScrape(ctx context.Context, keywordID int64) (*queue.Handle, error) {
	return p.queue.Enqueue(ctx, JobScrape, ScrapePayload{KeywordID: keywordID}, queue.Options{
		MaxAttempts: p.settings.ScrapeAttempts,
		Key:         ScrapeKey(keywordID),
	})
}

// ArmStatus возобновляет проверку статуса активного объявления с того места,
// где цикл остановился: следующая проверка - через NextCheckDelay после последней.
func (p *Pipeline) ArmStatus(ctx context.Context, listing *models.Listing) (*queue.Handle, error) {
	from, delay := listing.CreatedAt, p.settings.StatusInitialDelay
	if !listing.LastCheckedAt.IsZero() {
		from, delay = listing.LastCheckedAt, listing.NextCheckDelay
	}

	wait := from.Add(delay).Sub(p.now())
	if wait < 0 {
		wait = 0
	}

	return p.queue.Enqueue(ctx, JobStatusPoll, StatusPollPayload{ExternalItemID: listing.ExternalItemID}, queue.Options{
		Delay:       wait,
		MaxAttempts: p.settings.StatusAttempts,
		Key:         StatusKey(listing.ExternalItemID),
	})
}

func ScrapeKey(keywordID int64) string {
	return "scrape:" + strconv.FormatInt(keywordID, 10)
}

func StatusKey(externalItemID string) string {
	return "status:" + externalItemID
}

func DeliveryKey(chatID int64, externalItemID string) string {
	return "deliver:" + strconv.FormatInt(chatID, 10) + ":" + externalItemID
}

func newPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Every(interval), 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package tasks_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/central-university-dev/go-listing-tracker/internal/config"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/notify"
	notifymocks "github.com/central-university-dev/go-listing-tracker/internal/tracker/notify/mocks"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/repository"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/tasks"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/tasks/mocks"
)

const (
	sourceLink = "https://www.carousell.sg/categories/photography-6"
	searchTerm = "leica"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type testEnv struct {
	ctx      context.Context
	clock    *fakeClock
	queue    *queue.Queue
	repos    *repository.Repositories
	scraper  *mocks.ListingScraper
	images   *mocks.ImageFetcher
	statuses *mocks.StatusChecker
	sender   *notifymocks.ChatSender
	pipeline *tasks.Pipeline
	settings tasks.Settings
}

func defaultSettings() tasks.Settings {
	return tasks.Settings{
		ScrapeInterval:     5 * time.Minute,
		ScrapeAttempts:     1,
		EnrichAttempts:     3,
		DeliveryAttempts:   3,
		StatusAttempts:     3,
		StatusInitialDelay: 6 * time.Hour,
		StatusMaxChecks:    200,
		KeywordHistoryCap:  250,
		ChatHistoryCap:     250,
	}
}

func newTestEnv(t *testing.T, settings tasks.Settings) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}

	repos, err := repository.New(&config.Config{DatabaseAccessType: config.MemoryAccess}, nil, logger)
	require.NoError(t, err)

	q := queue.New(queue.NewMemoryStore(), logger,
		queue.WithClock(clock.Now),
		queue.WithBackoff(time.Second, time.Minute),
		queue.WithRetention(time.Hour),
	)

	env := &testEnv{
		ctx:      context.Background(),
		clock:    clock,
		queue:    q,
		repos:    repos,
		scraper:  mocks.NewListingScraper(t),
		images:   mocks.NewImageFetcher(t),
		statuses: mocks.NewStatusChecker(t),
		sender:   notifymocks.NewChatSender(t),
		settings: settings,
	}

	env.pipeline = tasks.NewPipeline(tasks.Dependencies{
		Queue:         q,
		Repositories:  repos,
		Scraper:       env.scraper,
		Images:        env.images,
		StatusChecker: env.statuses,
		Sender:        env.sender,
	}, settings, logger,
		tasks.WithClock(clock.Now),
		tasks.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	env.pipeline.Register(q)

	return env
}

func (e *testEnv) runDue(t *testing.T) int {
	t.Helper()

	n, err := e.queue.RunDue(e.ctx)
	require.NoError(t, err)

	return n
}

func (e *testEnv) subscribe(t *testing.T, externalChatID int64) (*models.Keyword, *models.Chat) {
	t.Helper()

	kw, err := e.repos.Keywords.FindOrCreate(e.ctx, searchTerm, sourceLink)
	require.NoError(t, err)

	chat, err := e.repos.Chats.FindOrCreate(e.ctx, externalChatID)
	require.NoError(t, err)

	require.NoError(t, e.repos.Keywords.AddChat(e.ctx, kw.ID, chat.ID))

	return kw, chat
}

func (e *testEnv) storeActiveListing(t *testing.T, externalItemID string, checks int) {
	t.Helper()

	_, _, err := e.repos.Listings.Upsert(e.ctx, &models.Listing{
		ExternalItemID: externalItemID,
		Title:          "Leica M6",
		SourceURL:      "https://www.carousell.sg/p/leica-m6-" + externalItemID,
		Status:         models.StatusActive,
	})
	require.NoError(t, err)

	for i := 0; i < checks; i++ {
		_, err := e.repos.Listings.IncrementCheckCount(e.ctx, externalItemID, models.ShortCheckDelay, e.clock.Now())
		require.NoError(t, err)
	}
}

func (e *testEnv) listing(t *testing.T, externalItemID string) *models.Listing {
	t.Helper()

	l, err := e.repos.Listings.FindByExternalID(e.ctx, externalItemID)
	require.NoError(t, err)

	return l
}

func listingsFor(ids ...int) []*models.Listing {
	listings := make([]*models.Listing, 0, len(ids))
	for _, id := range ids {
		listings = append(listings, &models.Listing{
			ExternalItemID: fmt.Sprint(id),
			Title:          fmt.Sprintf("Leica #%d", id),
			Price:          "S$1,200",
			PostedDate:     "2 days ago",
			SourceURL:      fmt.Sprintf("https://www.carousell.sg/p/leica-%d", id),
		})
	}

	return listings
}

func TestScrape_FirstRunOnlyFillsHistory(t *testing.T) {
	env := newTestEnv(t, defaultSettings())
	kw, _ := env.subscribe(t, 7)

	env.scraper.On("Scrape", mock.Anything, sourceLink, searchTerm).
		Return(listingsFor(1, 2, 3, 4, 5), nil).Once()

	_, err := env.pipeline.ArmScrape(env.ctx, kw.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, env.runDue(t))
	assert.Equal(t, 0, env.runDue(t))

	loaded, err := env.repos.Keywords.FindByID(env.ctx, kw.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, loaded.RecentItemIDs)

	pending, err := env.queue.Pending(env.ctx, tasks.ScrapeKey(kw.ID))
	require.NoError(t, err)
	assert.True(t, pending)

	stats, err := env.queue.Stats(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[queue.StateDelayed])
	assert.Equal(t, 0, stats[queue.StateWaiting])
}

func TestScrape_NewListingFlowsThroughPipeline(t *testing.T) {
	env := newTestEnv(t, defaultSettings())
	kw, chat := env.subscribe(t, 7)

	env.scraper.On("Scrape", mock.Anything, sourceLink, searchTerm).
		Return(listingsFor(1, 2, 3), nil).Once()
	env.scraper.On("Scrape", mock.Anything, sourceLink, searchTerm).
		Return(listingsFor(1, 2, 3, 4), nil).Once()
	env.images.On("GetImage", mock.Anything, "https://www.carousell.sg/p/leica-4").
		Return("https://media.karousell.com/leica-4.jpg", nil).Once()

	var sent notify.Message

	env.sender.On("Send", mock.Anything, int64(7), mock.AnythingOfType("notify.Message")).
		Run(func(args mock.Arguments) { sent = args.Get(2).(notify.Message) }).
		Return(nil).Once()

	_, err := env.pipeline.ArmScrape(env.ctx, kw.ID)
	require.NoError(t, err)
	env.runDue(t)

	env.clock.Advance(env.settings.ScrapeInterval)
	assert.Equal(t, 1, env.runDue(t), "scrape")
	assert.Equal(t, 1, env.runDue(t), "enrich")
	assert.Equal(t, 1, env.runDue(t), "deliver")

	assert.Equal(t, "4", sent.ExternalItemID)
	assert.Equal(t, "https://media.karousell.com/leica-4.jpg", sent.ImageURL)
	assert.Equal(t, "https://www.carousell.sg/p/leica-4", sent.LinkURL)

	loadedChat, err := env.repos.Chats.FindByID(env.ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, loadedChat.DeliveredItemIDs)

	stored := env.listing(t, "4")
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.Equal(t, 6*time.Hour, stored.NextCheckDelay)

	page, err := env.repos.Deliveries.FindListingsByChat(env.ctx, chat.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "4", page.Items[0].ExternalItemID)

	pending, err := env.queue.Pending(env.ctx, tasks.StatusKey("4"))
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestScrape_KeywordHistoryIsBounded(t *testing.T) {
	settings := defaultSettings()
	settings.KeywordHistoryCap = 3

	env := newTestEnv(t, settings)
	kw, _ := env.subscribe(t, 7)

	env.scraper.On("Scrape", mock.Anything, sourceLink, searchTerm).
		Return(listingsFor(1, 2, 3, 4, 5), nil).Once()

	_, err := env.pipeline.ArmScrape(env.ctx, kw.ID)
	require.NoError(t, err)
	env.runDue(t)

	loaded, err := env.repos.Keywords.FindByID(env.ctx, kw.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5"}, loaded.RecentItemIDs)
}

func TestScrape_WithoutSubscribersStops(t *testing.T) {
	env := newTestEnv(t, defaultSettings())

	kw, err := env.repos.Keywords.FindOrCreate(env.ctx, searchTerm, sourceLink)
	require.NoError(t, err)

	_, err = env.pipeline.ArmScrape(env.ctx, kw.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, env.runDue(t))

	pending, err := env.queue.Pending(env.ctx, tasks.ScrapeKey(kw.ID))
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestScrape_DeletedKeywordStops(t *testing.T) {
	env := newTestEnv(t, defaultSettings())

	_, err := env.pipeline.ArmScrape(env.ctx, 404)
	require.NoError(t, err)

	env.runDue(t)

	pending, err := env.queue.Pending(env.ctx, tasks.ScrapeKey(404))
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestScrape_FetchErrorKeepsLoopAlive(t *testing.T) {
	env := newTestEnv(t, defaultSettings())
	kw, _ := env.subscribe(t, 7)

	env.scraper.On("Scrape", mock.Anything, sourceLink, searchTerm).
		Return(nil, errors.New("connection reset")).Once()

	handle, err := env.pipeline.ArmScrape(env.ctx, kw.ID)
	require.NoError(t, err)
	env.runDue(t)

	job, err := env.queue.Get(env.ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateWaiting, job.State)
	assert.Equal(t, env.clock.Now().Add(env.settings.ScrapeInterval), job.RunAt)

	loaded, err := env.repos.Keywords.FindByID(env.ctx, kw.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.RecentItemIDs)
}

func TestScrape_ArmIsIdempotent(t *testing.T) {
	env := newTestEnv(t, defaultSettings())
	kw, _ := env.subscribe(t, 7)

	first, err := env.pipeline.ArmScrape(env.ctx, kw.ID)
	require.NoError(t, err)

	second, err := env.pipeline.ArmScrape(env.ctx, kw.ID)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ID, second.ID)
}

func TestStatusPoll_ArmResumesFromLastCheck(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wait    time.Duration
	}{
		{name: "проверка еще не наступила", elapsed: 2 * time.Hour, wait: 4 * time.Hour},
		{name: "проверка просрочена", elapsed: 10 * time.Hour, wait: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, defaultSettings())
			env.storeActiveListing(t, "42", 3)
			env.clock.Advance(tt.elapsed)

			first, err := env.pipeline.ArmStatus(env.ctx, env.listing(t, "42"))
			require.NoError(t, err)
			assert.False(t, first.Duplicate)
			assert.Equal(t, env.clock.Now().Add(tt.wait), first.RunAt)

			second, err := env.pipeline.ArmStatus(env.ctx, env.listing(t, "42"))
			require.NoError(t, err)
			assert.True(t, second.Duplicate)
			assert.Equal(t, first.ID, second.ID)
		})
	}
}

func TestEnrich_LastAttemptDeliversWithoutImage(t *testing.T) {
	settings := defaultSettings()
	settings.EnrichAttempts = 2

	env := newTestEnv(t, settings)
	kw, chat := env.subscribe(t, 7)

	env.images.On("GetImage", mock.Anything, "https://www.carousell.sg/p/leica-9").
		Return("", errors.New("timeout")).Twice()
	env.sender.On("Send", mock.Anything, int64(7), mock.MatchedBy(func(msg notify.Message) bool {
		return msg.ExternalItemID == "9" && msg.ImageURL == ""
	})).Return(nil).Once()

	_, err := env.queue.Enqueue(env.ctx, tasks.JobEnrich, tasks.EnrichPayload{
		KeywordID: kw.ID,
		Listing: tasks.ListingSnapshot{
			ExternalItemID: "9",
			Title:          "Leica #9",
			SourceURL:      "https://www.carousell.sg/p/leica-9",
		},
		ChatIDs: []int64{chat.ID},
	}, queue.Options{MaxAttempts: settings.EnrichAttempts})
	require.NoError(t, err)

	env.runDue(t)

	_, err = env.repos.Listings.FindByExternalID(env.ctx, "9")
	require.Error(t, err)

	env.clock.Advance(time.Second)
	assert.Equal(t, 1, env.runDue(t), "enrich retry")
	assert.Equal(t, 1, env.runDue(t), "deliver")

	assert.Empty(t, env.listing(t, "9").ImageURL)
}

func TestDeliver_IsIdempotentPerChat(t *testing.T) {
	env := newTestEnv(t, defaultSettings())
	_, chat := env.subscribe(t, 7)
	env.storeActiveListing(t, "42", 0)

	env.sender.On("Send", mock.Anything, int64(7), mock.Anything).Return(nil).Once()

	payload := tasks.DeliverPayload{ChatID: chat.ID, ExternalItemID: "42"}
	opts := queue.Options{MaxAttempts: 3, Key: tasks.DeliveryKey(chat.ID, "42")}

	_, err := env.queue.Enqueue(env.ctx, tasks.JobDeliver, payload, opts)
	require.NoError(t, err)
	env.runDue(t)

	_, err = env.queue.Enqueue(env.ctx, tasks.JobDeliver, payload, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, env.runDue(t))

	loaded, err := env.repos.Chats.FindByID(env.ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, loaded.DeliveredItemIDs)
}

func TestDeliver_ChatHistoryIsBounded(t *testing.T) {
	settings := defaultSettings()
	settings.ChatHistoryCap = 2

	env := newTestEnv(t, settings)
	_, chat := env.subscribe(t, 7)

	env.sender.On("Send", mock.Anything, int64(7), mock.Anything).Return(nil).Times(3)

	for _, id := range []string{"1", "2", "3"} {
		env.storeActiveListing(t, id, 0)

		_, err := env.queue.Enqueue(env.ctx, tasks.JobDeliver,
			tasks.DeliverPayload{ChatID: chat.ID, ExternalItemID: id},
			queue.Options{MaxAttempts: 1})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, env.runDue(t))

	loaded, err := env.repos.Chats.FindByID(env.ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, loaded.DeliveredItemIDs)
}

func TestDeliver_ExhaustedAttemptsDropMessage(t *testing.T) {
	settings := defaultSettings()
	settings.DeliveryAttempts = 2

	env := newTestEnv(t, settings)
	_, chat := env.subscribe(t, 7)
	env.storeActiveListing(t, "42", 0)

	env.sender.On("Send", mock.Anything, int64(7), mock.Anything).
		Return(errors.New("bot was blocked by the user")).Twice()

	handle, err := env.queue.Enqueue(env.ctx, tasks.JobDeliver,
		tasks.DeliverPayload{ChatID: chat.ID, ExternalItemID: "42"},
		queue.Options{MaxAttempts: settings.DeliveryAttempts})
	require.NoError(t, err)

	env.runDue(t)
	env.clock.Advance(time.Second)
	env.runDue(t)

	job, err := env.queue.Get(env.ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateFailed, job.State)

	loaded, err := env.repos.Chats.FindByID(env.ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.DeliveredItemIDs)
}

func enqueueStatusPoll(t *testing.T, env *testEnv, externalItemID string) *queue.Handle {
	t.Helper()

	handle, err := env.queue.Enqueue(env.ctx, tasks.JobStatusPoll,
		tasks.StatusPollPayload{ExternalItemID: externalItemID},
		queue.Options{MaxAttempts: env.settings.StatusAttempts, Key: tasks.StatusKey(externalItemID)})
	require.NoError(t, err)

	return handle
}

func TestStatusPoll_DelaySchedule(t *testing.T) {
	tests := []struct {
		name   string
		checks int
		delay  time.Duration
	}{
		{name: "первая проверка", checks: 0, delay: 6 * time.Hour},
		{name: "перед порогом", checks: 39, delay: 6 * time.Hour},
		{name: "на пороге", checks: 40, delay: 24 * time.Hour},
		{name: "у предела", checks: 200, delay: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, defaultSettings())
			env.storeActiveListing(t, "42", tt.checks)

			env.statuses.On("GetStatus", mock.Anything, "https://www.carousell.sg/p/leica-m6-42").
				Return(models.StatusActive, nil).Once()

			handle := enqueueStatusPoll(t, env, "42")
			env.runDue(t)

			job, err := env.queue.Get(env.ctx, handle.ID)
			require.NoError(t, err)
			assert.Equal(t, queue.StateWaiting, job.State)
			assert.Equal(t, env.clock.Now().Add(tt.delay), job.RunAt)

			stored := env.listing(t, "42")
			assert.Equal(t, tt.checks+1, stored.CheckCount)
			assert.Equal(t, tt.delay, stored.NextCheckDelay)
		})
	}
}

func TestStatusPoll_StopsAfterMaxChecks(t *testing.T) {
	env := newTestEnv(t, defaultSettings())
	env.storeActiveListing(t, "42", 201)

	env.statuses.On("GetStatus", mock.Anything, mock.Anything).Return(models.StatusActive, nil).Once()

	enqueueStatusPoll(t, env, "42")
	env.runDue(t)

	assert.Equal(t, models.StatusNotTracking, env.listing(t, "42").Status)

	pending, err := env.queue.Pending(env.ctx, tasks.StatusKey("42"))
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestStatusPoll_StatusChangeEndsTracking(t *testing.T) {
	tests := []struct {
		name     string
		observed models.ListingStatus
		want     models.ListingStatus
	}{
		{name: "продано", observed: models.StatusSold, want: models.StatusSold},
		{name: "зарезервировано", observed: models.StatusReserved, want: models.StatusReserved},
		{name: "неизвестно", observed: models.ListingStatus("unknown"), want: models.StatusSold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, defaultSettings())
			env.storeActiveListing(t, "42", 3)

			env.statuses.On("GetStatus", mock.Anything, mock.Anything).Return(tt.observed, nil).Once()

			enqueueStatusPoll(t, env, "42")
			env.runDue(t)

			stored := env.listing(t, "42")
			assert.Equal(t, tt.want, stored.Status)
			assert.Equal(t, env.clock.Now(), stored.StatusChangedAt)
			assert.Equal(t, 3, stored.CheckCount)

			pending, err := env.queue.Pending(env.ctx, tasks.StatusKey("42"))
			require.NoError(t, err)
			assert.False(t, pending)
		})
	}
}

func TestStatusPoll_FinalFailureMarksDeleted(t *testing.T) {
	settings := defaultSettings()
	settings.StatusAttempts = 2

	env := newTestEnv(t, settings)
	env.storeActiveListing(t, "42", 0)

	env.statuses.On("GetStatus", mock.Anything, mock.Anything).
		Return(models.ListingStatus(""), errors.New("503 Service Unavailable")).Twice()

	enqueueStatusPoll(t, env, "42")

	env.runDue(t)
	assert.Equal(t, models.StatusActive, env.listing(t, "42").Status)

	env.clock.Advance(time.Second)
	env.runDue(t)

	assert.Equal(t, models.StatusDeleted, env.listing(t, "42").Status)
}

func TestStatusPoll_InactiveListingIsSkipped(t *testing.T) {
	env := newTestEnv(t, defaultSettings())
	env.storeActiveListing(t, "42", 0)
	require.NoError(t, env.repos.Listings.UpdateStatus(env.ctx, "42", models.StatusSold, env.clock.Now()))

	enqueueStatusPoll(t, env, "42")
	assert.Equal(t, 1, env.runDue(t))

	env.statuses.AssertNotCalled(t, "GetStatus", mock.Anything, mock.Anything)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "scrape:12", tasks.ScrapeKey(12))
	assert.Equal(t, "status:987654", tasks.StatusKey("987654"))
	assert.Equal(t, "deliver:7:42", tasks.DeliveryKey(7, "42"))
}

package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/central-university-dev/go-listing-tracker/internal/config"
	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/repository"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/service"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/service/mocks"
)

const (
	testLink = "https://www.carousell.sg/categories/photography-6"
)

func newService(t *testing.T) (*service.SubscriptionService, *repository.Repositories, *mocks.LoopArmer) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repos, err := repository.New(&config.Config{DatabaseAccessType: config.MemoryAccess}, nil, logger)
	require.NoError(t, err)

	armer := mocks.NewLoopArmer(t)

	return service.NewSubscriptionService(repos, armer, logger), repos, armer
}

func TestSubscriptionService_Subscribe(t *testing.T) {
	ctx := context.Background()
	svc, _, armer := newService(t)

	armer.On("ArmScrape", mock.Anything, mock.AnythingOfType("int64")).
		Return(&queue.Handle{ID: "1"}, nil).Twice()

	kw, err := svc.Subscribe(ctx, 100, " leica ", testLink)
	require.NoError(t, err)
	assert.Equal(t, "leica", kw.SearchTerm)
	assert.Len(t, kw.ChatIDs, 1)

	other, err := svc.Subscribe(ctx, 200, "leica", testLink)
	require.NoError(t, err)
	assert.Equal(t, kw.ID, other.ID)
	assert.Len(t, other.ChatIDs, 2)

	_, err = svc.Subscribe(ctx, 100, "leica", testLink)
	assert.ErrorIs(t, err, &domainerrors.ErrKeywordAlreadyTracked{})

	keywords, err := svc.ListKeywords(ctx, 100)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, kw.ID, keywords[0].ID)
}

func TestSubscriptionService_SubscribeValidation(t *testing.T) {
	tests := []struct {
		name  string
		term  string
		link  string
		check func(t *testing.T, err error)
	}{
		{
			name: "пустой запрос",
			term: "  ",
			link: testLink,
			check: func(t *testing.T, err error) {
				var target *domainerrors.ErrMissingRequiredField
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "пустая ссылка",
			term: "leica",
			check: func(t *testing.T, err error) {
				var target *domainerrors.ErrMissingRequiredField
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "ссылка без схемы",
			term: "leica",
			link: "carousell.sg/categories",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, &domainerrors.ErrInvalidValue{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t)

			_, err := svc.Subscribe(context.Background(), 1, tt.term, tt.link)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSubscriptionService_ArmFailureKeepsSubscription(t *testing.T) {
	ctx := context.Background()
	svc, repos, armer := newService(t)

	armer.On("ArmScrape", mock.Anything, mock.Anything).Return(nil, errors.New("redis down")).Once()

	kw, err := svc.Subscribe(ctx, 100, "*", testLink)
	require.NoError(t, err)

	subscribed, err := repos.Keywords.GetSubscribed(ctx)
	require.NoError(t, err)
	require.Len(t, subscribed, 1)
	assert.Equal(t, kw.ID, subscribed[0].ID)
	assert.Equal(t, models.WholeCategory, subscribed[0].SearchTerm)
}

func TestSubscriptionService_UnsubscribeDeletesOrphanKeyword(t *testing.T) {
	ctx := context.Background()
	svc, repos, armer := newService(t)

	armer.On("ArmScrape", mock.Anything, mock.Anything).Return(&queue.Handle{}, nil)

	kw, err := svc.Subscribe(ctx, 100, "leica", testLink)
	require.NoError(t, err)

	_, err = svc.Subscribe(ctx, 200, "leica", testLink)
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, 100, kw.ID))

	loaded, err := repos.Keywords.FindByID(ctx, kw.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.ChatIDs, 1)

	err = svc.Unsubscribe(ctx, 100, kw.ID)
	assert.ErrorIs(t, err, &domainerrors.ErrKeywordNotTracked{})

	require.NoError(t, svc.Unsubscribe(ctx, 200, kw.ID))

	_, err = repos.Keywords.FindByID(ctx, kw.ID)
	assert.ErrorIs(t, err, &domainerrors.ErrKeywordNotFound{})

	err = svc.Unsubscribe(ctx, 300, kw.ID)
	assert.ErrorIs(t, err, &domainerrors.ErrChatNotFound{})
}

func TestSubscriptionService_ArmAll(t *testing.T) {
	ctx := context.Background()
	svc, repos, armer := newService(t)

	first, err := repos.Keywords.FindOrCreate(ctx, "leica", testLink)
	require.NoError(t, err)

	second, err := repos.Keywords.FindOrCreate(ctx, "hasselblad", testLink)
	require.NoError(t, err)

	orphan, err := repos.Keywords.FindOrCreate(ctx, "rolleiflex", testLink)
	require.NoError(t, err)

	chat, err := repos.Chats.FindOrCreate(ctx, 100)
	require.NoError(t, err)

	require.NoError(t, repos.Keywords.AddChat(ctx, first.ID, chat.ID))
	require.NoError(t, repos.Keywords.AddChat(ctx, second.ID, chat.ID))

	_, _, err = repos.Listings.Upsert(ctx, &models.Listing{ExternalItemID: "active", Status: models.StatusActive})
	require.NoError(t, err)

	_, _, err = repos.Listings.Upsert(ctx, &models.Listing{ExternalItemID: "sold", Status: models.StatusActive})
	require.NoError(t, err)
	require.NoError(t, repos.Listings.UpdateStatus(ctx, "sold", models.StatusSold, time.Now()))

	armer.On("ArmScrape", mock.Anything, first.ID).Return(&queue.Handle{Duplicate: true}, nil).Once()
	armer.On("ArmScrape", mock.Anything, second.ID).Return(&queue.Handle{}, nil).Once()
	armer.On("ArmStatus", mock.Anything, mock.MatchedBy(func(l *models.Listing) bool {
		return l.ExternalItemID == "active"
	})).Return(&queue.Handle{}, nil).Once()

	armed, err := svc.ArmAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, armed)

	armer.AssertNotCalled(t, "ArmScrape", mock.Anything, orphan.ID)
	armer.AssertNumberOfCalls(t, "ArmStatus", 1)
}

func TestSubscriptionService_Listings(t *testing.T) {
	ctx := context.Background()
	svc, repos, armer := newService(t)

	armer.On("ArmScrape", mock.Anything, mock.Anything).Return(&queue.Handle{}, nil)

	_, err := svc.Subscribe(ctx, 100, "leica", testLink)
	require.NoError(t, err)

	chat, err := repos.Chats.FindByExternalID(ctx, 100)
	require.NoError(t, err)

	for _, id := range []string{"1", "2", "3"} {
		l, _, err := repos.Listings.Upsert(ctx, &models.Listing{ExternalItemID: id})
		require.NoError(t, err)
		require.NoError(t, repos.Deliveries.CreateMany(ctx, l.ID, []int64{chat.ID}))
	}

	require.NoError(t, repos.Listings.UpdateStatus(ctx, "2", models.StatusSold, time.Now()))

	page, err := svc.ListChatListings(ctx, 100, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.TotalDocs)

	sold, err := svc.ListListings(ctx, models.StatusSold, 1, 10)
	require.NoError(t, err)
	require.Len(t, sold.Items, 1)
	assert.Equal(t, "2", sold.Items[0].ExternalItemID)

	all, err := svc.ListListings(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalDocs)

	_, err = svc.ListListings(ctx, models.ListingStatus("archived"), 1, 10)
	assert.ErrorIs(t, err, &domainerrors.ErrInvalidValue{})

	_, err = svc.ListChatListings(ctx, 999, 1, 10)
	assert.ErrorIs(t, err, &domainerrors.ErrChatNotFound{})
}

func TestSupervisor_RunsImmediatelyAndPeriodically(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	armer := mocks.NewArmer(t)

	calls := make(chan struct{}, 10)

	armer.On("ArmAll", mock.Anything).
		Run(func(mock.Arguments) { calls <- struct{}{} }).
		Return(1, nil)

	supervisor := service.NewSupervisor(armer, time.Second, logger)
	require.NoError(t, supervisor.Start(context.Background()))

	defer supervisor.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatalf("супервизор не выполнил проход %d", i+1)
		}
	}
}

func TestSupervisor_RunLogsErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	armer := mocks.NewArmer(t)

	armer.On("ArmAll", mock.Anything).Return(0, errors.New("db down")).Once()

	service.NewSupervisor(armer, time.Minute, logger).Run(context.Background())
}

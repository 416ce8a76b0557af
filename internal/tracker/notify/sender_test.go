package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/central-university-dev/go-listing-tracker/internal/config"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/notify"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/notify/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatListing(t *testing.T) {
	msg := notify.FormatListing(&models.Listing{
		ExternalItemID: "42",
		Title:          "Sony <A7>",
		Price:          "S$1,200",
		PostedDate:     "2 days ago",
		SourceURL:      "https://www.carousell.sg/p/sony-a7-42",
		ImageURL:       "https://media.example.com/42.jpg",
	})

	assert.Equal(t, "Sony &lt;A7&gt;\n<strong>S$1,200</strong>\n2 days ago", msg.Text)
	assert.Equal(t, "https://media.example.com/42.jpg", msg.ImageURL)
	assert.Equal(t, "https://www.carousell.sg/p/sony-a7-42", msg.LinkURL)
	assert.Equal(t, "View on Carousell", msg.LinkText)
	assert.Equal(t, "42", msg.ExternalItemID)
}

func TestFallbackSender(t *testing.T) {
	msg := notify.Message{ExternalItemID: "1", Text: "camera"}
	primaryErr := errors.New("telegram недоступен")

	t.Run("primary succeeds", func(t *testing.T) {
		primary := mocks.NewChatSender(t)
		secondary := mocks.NewChatSender(t)

		primary.On("Send", mock.Anything, int64(7), msg).Return(nil)

		err := notify.NewFallbackSender(primary, secondary, discardLogger()).Send(context.Background(), 7, msg)

		require.NoError(t, err)
		secondary.AssertNotCalled(t, "Send")
	})

	t.Run("secondary used on failure", func(t *testing.T) {
		primary := mocks.NewChatSender(t)
		secondary := mocks.NewChatSender(t)

		primary.On("Send", mock.Anything, int64(7), msg).Return(primaryErr)
		secondary.On("Send", mock.Anything, int64(7), msg).Return(nil)

		err := notify.NewFallbackSender(primary, secondary, discardLogger()).Send(context.Background(), 7, msg)

		require.NoError(t, err)
	})

	t.Run("both fail returns both errors", func(t *testing.T) {
		primary := mocks.NewChatSender(t)
		secondary := mocks.NewChatSender(t)
		secondaryErr := errors.New("kafka недоступна")

		primary.On("Send", mock.Anything, int64(7), msg).Return(primaryErr)
		secondary.On("Send", mock.Anything, int64(7), msg).Return(secondaryErr)

		err := notify.NewFallbackSender(primary, secondary, discardLogger()).Send(context.Background(), 7, msg)

		require.Error(t, err)
		assert.ErrorIs(t, err, primaryErr)
		assert.ErrorIs(t, err, secondaryErr)
		assert.Len(t, multierr.Errors(err), 2)
	})
}

type telegramCall struct {
	method string
	form   map[string]string
}

func newTelegramServer(t *testing.T) (*httptest.Server, func() []telegramCall) {
	t.Helper()

	var (
		mu    sync.Mutex
		calls []telegramCall
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

		form := make(map[string]string, len(r.Form))
		for key := range r.Form {
			form[key] = r.Form.Get(key)
		}

		mu.Lock()
		calls = append(calls, telegramCall{method: method, form: form})
		mu.Unlock()

		var result any = map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 7, "type": "private"}}
		if method == "getMe" {
			result = map[string]any{"id": 1, "is_bot": true, "first_name": "tracker", "username": "tracker_bot"}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}))

	return server, func() []telegramCall {
		mu.Lock()
		defer mu.Unlock()

		return append([]telegramCall(nil), calls...)
	}
}

func TestTelegramSender_SendsPhotoWithButton(t *testing.T) {
	server, calls := newTelegramServer(t)
	defer server.Close()

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint("test-token", server.URL+"/bot%s/%s")
	require.NoError(t, err)

	sender := notify.NewTelegramSenderWithBot(bot, discardLogger())

	err = sender.Send(context.Background(), 7, notify.Message{
		ExternalItemID: "42",
		Text:           "Sony A7\n<strong>S$1,200</strong>\n2 days ago",
		ImageURL:       "https://media.example.com/42.jpg",
		LinkURL:        "https://www.carousell.sg/p/sony-a7-42",
		LinkText:       "View on Carousell",
	})
	require.NoError(t, err)

	err = sender.Send(context.Background(), 7, notify.Message{
		ExternalItemID: "43",
		Text:           "No image",
		LinkURL:        "https://www.carousell.sg/p/no-image-43",
		LinkText:       "View on Carousell",
	})
	require.NoError(t, err)

	recorded := calls()
	require.Len(t, recorded, 3)

	assert.Equal(t, "getMe", recorded[0].method)

	assert.Equal(t, "sendPhoto", recorded[1].method)
	assert.Equal(t, "7", recorded[1].form["chat_id"])
	assert.Equal(t, "https://media.example.com/42.jpg", recorded[1].form["photo"])
	assert.Equal(t, "HTML", recorded[1].form["parse_mode"])
	assert.Contains(t, recorded[1].form["reply_markup"], "https://www.carousell.sg/p/sony-a7-42")

	assert.Equal(t, "sendMessage", recorded[2].method)
	assert.Equal(t, "No image", recorded[2].form["text"])
}

func newHangingTelegramServer(t *testing.T) *httptest.Server {
	t.Helper()

	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"tracker","username":"tracker_bot"}}`))

			return
		}

		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	return server
}

func TestTelegramSender_HungAPI(t *testing.T) {
	msg := notify.Message{ExternalItemID: "42", Text: "Sony A7"}

	t.Run("client timeout", func(t *testing.T) {
		server := newHangingTelegramServer(t)

		bot, err := notify.NewTelegramBot("test-token", server.URL+"/bot%s/%s", 200*time.Millisecond)
		require.NoError(t, err)

		sender := notify.NewTelegramSenderWithBot(bot, discardLogger())

		start := time.Now()
		err = sender.Send(context.Background(), 7, msg)

		var sendErr *customerrors.ErrSendMessage
		require.ErrorAs(t, err, &sendErr)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("context deadline", func(t *testing.T) {
		server := newHangingTelegramServer(t)

		bot, err := notify.NewTelegramBot("test-token", server.URL+"/bot%s/%s", 5*time.Second)
		require.NoError(t, err)

		sender := notify.NewTelegramSenderWithBot(bot, discardLogger())

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		err = sender.Send(ctx, 7, msg)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestNewChatSender_UnknownTransport(t *testing.T) {
	_, err := notify.NewChatSender(&config.Config{MessageTransport: "PIGEON"}, discardLogger())

	var transportErr *customerrors.ErrUnknownTransport
	assert.ErrorAs(t, err, &transportErr)
}

func TestNewChatSender_Kafka(t *testing.T) {
	sender, err := notify.NewChatSender(&config.Config{
		MessageTransport:      "kafka",
		KafkaBrokers:          "localhost:9092",
		TopicListingDelivered: "listing-deliveries",
	}, discardLogger())
	require.NoError(t, err)

	_, ok := sender.(*notify.KafkaSender)
	assert.True(t, ok)
	assert.NoError(t, notify.Close(sender))
}

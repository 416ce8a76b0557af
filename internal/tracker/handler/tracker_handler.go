package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
)

type SubscriptionService interface {
	Subscribe(ctx context.Context, externalChatID int64, searchTerm, sourceLink string) (*models.Keyword, error)
	Unsubscribe(ctx context.Context, externalChatID, keywordID int64) error
	ListKeywords(ctx context.Context, externalChatID int64) ([]*models.Keyword, error)
	ListChatListings(ctx context.Context, externalChatID int64, page, limit int) (models.Page[*models.Listing], error)
	ListListings(ctx context.Context, status models.ListingStatus, page, limit int) (models.Page[*models.Listing], error)
}

type QueueStats interface {
	Stats(ctx context.Context) (map[queue.State]int, error)
}

type TrackerHandler struct {
	service SubscriptionService
	queue   QueueStats
	logger  *slog.Logger
}

func NewTrackerHandler(service SubscriptionService, queue QueueStats, logger *slog.Logger) *TrackerHandler {
	return &TrackerHandler{
		service: service,
		queue:   queue,
		logger:  logger,
	}
}

func (h *TrackerHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, http.StatusBadRequest, "Некорректное тело запроса", err)
		return
	}

	keyword, err := h.service.Subscribe(c.Request.Context(), req.ChatID, req.SearchTerm, req.SourceLink)
	if err != nil {
		h.abortWithServiceError(c, "Ошибка при добавлении подписки", err)
		return
	}

	c.JSON(http.StatusCreated, toKeywordResponse(keyword))
}

func (h *TrackerHandler) Unsubscribe(c *gin.Context) {
	var uri keywordURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.abort(c, http.StatusBadRequest, "Некорректные параметры пути", err)
		return
	}

	if err := h.service.Unsubscribe(c.Request.Context(), uri.ChatID, uri.KeywordID); err != nil {
		h.abortWithServiceError(c, "Ошибка при удалении подписки", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TrackerHandler) ListKeywords(c *gin.Context) {
	var uri chatURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.abort(c, http.StatusBadRequest, "Некорректные параметры пути", err)
		return
	}

	keywords, err := h.service.ListKeywords(c.Request.Context(), uri.ChatID)
	if err != nil {
		h.abortWithServiceError(c, "Ошибка при получении подписок", err)
		return
	}

	resp := make([]KeywordResponse, 0, len(keywords))
	for _, k := range keywords {
		resp = append(resp, toKeywordResponse(k))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *TrackerHandler) ListChatListings(c *gin.Context) {
	var uri chatURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.abort(c, http.StatusBadRequest, "Некорректные параметры пути", err)
		return
	}

	var query pageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.abort(c, http.StatusBadRequest, "Некорректные параметры пагинации", err)
		return
	}

	page, limit := models.NormalizePaging(query.Page, query.Limit)

	result, err := h.service.ListChatListings(c.Request.Context(), uri.ChatID, page, limit)
	if err != nil {
		h.abortWithServiceError(c, "Ошибка при получении объявлений чата", err)
		return
	}

	c.JSON(http.StatusOK, toListingPage(result))
}

func (h *TrackerHandler) ListListings(c *gin.Context) {
	var query listingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.abort(c, http.StatusBadRequest, "Некорректные параметры запроса", err)
		return
	}

	page, limit := models.NormalizePaging(query.Page, query.Limit)

	result, err := h.service.ListListings(c.Request.Context(), models.ListingStatus(query.Status), page, limit)
	if err != nil {
		h.abortWithServiceError(c, "Ошибка при получении объявлений", err)
		return
	}

	c.JSON(http.StatusOK, toListingPage(result))
}

func (h *TrackerHandler) QueueStats(c *gin.Context) {
	counts, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		h.abortWithServiceError(c, "Ошибка при получении состояния очереди", err)
		return
	}

	resp := make(map[string]int, len(counts))
	for state, n := range counts {
		resp[string(state)] = n
	}

	c.JSON(http.StatusOK, resp)
}

func (h *TrackerHandler) abortWithServiceError(c *gin.Context, description string, err error) {
	var missingField *domainerrors.ErrMissingRequiredField

	switch {
	case errors.Is(err, &domainerrors.ErrChatNotFound{}),
		errors.Is(err, &domainerrors.ErrKeywordNotFound{}),
		errors.Is(err, &domainerrors.ErrKeywordNotTracked{}):
		h.abort(c, http.StatusNotFound, description, err)
	case errors.Is(err, &domainerrors.ErrKeywordAlreadyTracked{}):
		h.abort(c, http.StatusConflict, description, err)
	case errors.Is(err, &domainerrors.ErrInvalidValue{}),
		errors.As(err, &missingField):
		h.abort(c, http.StatusBadRequest, description, err)
	default:
		h.logger.Error(description, "error", err)
		h.abort(c, http.StatusInternalServerError, description, nil)
	}
}

func (h *TrackerHandler) abort(c *gin.Context, status int, description string, err error) {
	resp := ErrorResponse{Description: description}
	if err != nil {
		resp.Error = err.Error()
	}

	c.AbortWithStatusJSON(status, resp)
}

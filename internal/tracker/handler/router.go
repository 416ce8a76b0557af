package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter собирает административное API. Middleware выполняются в порядке
// передачи, до обработчика маршрута.
func NewRouter(h *TrackerHandler, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	// Лимитер считает запросы по адресу соединения, заголовкам прокси не доверяем.
	_ = r.SetTrustedProxies(nil)

	r.HandleMethodNotAllowed = true

	r.Use(middlewares...)
	r.Use(gin.Recovery())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Description: "Маршрут не найден"})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Description: "Метод не поддерживается"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/subscriptions", h.Subscribe)

		api.GET("/chats/:chatId/keywords", h.ListKeywords)
		api.DELETE("/chats/:chatId/keywords/:keywordId", h.Unsubscribe)
		api.GET("/chats/:chatId/listings", h.ListChatListings)

		api.GET("/listings", h.ListListings)
		api.GET("/queue/stats", h.QueueStats)
	}

	return r
}

// Package server wires HTTP handlers into a gin engine for the chat
// application via routing helpers.
package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tyrowin/hellochat/internal/logger"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// SetupRoutes configures and returns a gin engine with all application routes.
// Malformed numeric path parameters are answered with 400 by the handlers.
func SetupRoutes(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))

	router.GET("/", h.Index)
	router.GET("/sleep/block/:t", h.SleepBlock)
	router.GET("/sleep/:t", h.SleepStream)
	router.GET("/file/:size", h.FileDownload)
	router.GET("/ws", h.ChatPage)
	router.GET("/ws/:client_id", h.ChatSocket)

	return router
}

// requestLogger writes one access log entry per finished request.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("remote", c.ClientIP()).
			Msg("request")
	}
}

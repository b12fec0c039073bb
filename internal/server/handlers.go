// Package server exposes HTTP handlers: the hello and sleep demos, the
// synthetic file download, the chat page and the chat WebSocket upgrade.
package server

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/Tyrowin/hellochat/internal/logger"
)

// Handlers carries the dependencies shared by the HTTP routes.
type Handlers struct {
	manager *ConnectionManager
	log     *logger.Logger

	// sleepUnit is the length of one "second" in the sleep endpoints.
	sleepUnit time.Duration
}

// NewHandlers creates the route handlers around manager.
func NewHandlers(manager *ConnectionManager, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handlers{
		manager:   manager,
		log:       log,
		sleepUnit: time.Second,
	}
}

// Index responds with a fixed greeting.
func (h *Handlers) Index(c *gin.Context) {
	c.String(http.StatusOK, "Hello world")
}

// SleepBlock holds the request for t seconds before answering.
func (h *Handlers) SleepBlock(c *gin.Context) {
	t, ok := h.uintParam(c, "t")
	if !ok {
		return
	}

	if !sleepContext(c.Request.Context(), h.scaled(t)) {
		h.log.Debug().Uint64("t", t).Msg("client left before sleep finished")
		return
	}

	c.String(http.StatusOK, HelloAfter(t))
}

// SleepStream streams the elapsed seconds every two seconds for t seconds,
// flushing each line as it is produced.
func (h *Handlers) SleepStream(c *gin.Context) {
	t, ok := h.uintParam(c, "t")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stream := newSleepStream(t, h.sleepUnit)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
	c.Stream(func(w io.Writer) bool {
		chunk, ok := stream.Next(ctx)
		if !ok {
			return false
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return false
		}
		return true
	})
}

// FileDownload streams {size} MiB of 'a' as an attachment named "{size}m".
func (h *Handlers) FileDownload(c *gin.Context) {
	raw := c.Param("size")
	if !strings.HasSuffix(raw, "m") {
		c.String(http.StatusNotFound, "404 page not found")
		return
	}

	size, err := strconv.ParseUint(strings.TrimSuffix(raw, "m"), 10, 64)
	if err != nil {
		h.badRequest(c, "size", "a non-negative integer", err)
		return
	}
	if size > math.MaxInt64/megabyte {
		h.badRequest(c, "size", "a non-negative integer", errors.New("value out of range"))
		return
	}

	length := int64(size) * megabyte
	c.DataFromReader(http.StatusOK, length, "application/octet-stream", newPatternReader(length), map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%dm"`, size),
	})
}

// ChatPage serves the HTML chat client.
func (h *Handlers) ChatPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", chatPage)
}

// ChatSocket upgrades the request and runs the chat session until the client
// leaves. The handler goroutine is the session's reader.
func (h *Handlers) ChatSocket(c *gin.Context) {
	clientID, err := strconv.ParseInt(c.Param("client_id"), 10, 64)
	if err != nil {
		h.badRequest(c, "client_id", "an integer", err)
		return
	}

	conn, err := h.manager.Accept(c.Writer, c.Request, clientID)
	if err != nil {
		return
	}

	if err := NewSession(h.manager, conn).Run(); err != nil {
		conn.log.Warn().Err(err).Msg("session ended with error")
	}
}

func (h *Handlers) uintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		h.badRequest(c, name, "a non-negative integer", err)
		return 0, false
	}
	return v, true
}

func (h *Handlers) badRequest(c *gin.Context, name, want string, cause error) {
	err := errors.Wrapf(ErrInvalidParam, "%s must be %s", name, want)
	h.log.Debug().Err(cause).Str("param", name).Str("path", c.Request.URL.Path).Msg("rejected request")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// scaled converts t sleep units to a duration, saturating instead of overflowing.
func (h *Handlers) scaled(t uint64) time.Duration {
	if h.sleepUnit <= 0 {
		return 0
	}
	if t > uint64(math.MaxInt64/h.sleepUnit) {
		return math.MaxInt64
	}
	return time.Duration(t) * h.sleepUnit
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/stream"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

type QuoteReader interface {
	Snapshot(symbol string) models.Quote
	SnapshotAll() []models.Quote
}

type Feed interface {
	Subscribe() (string, <-chan []models.Quote)
	Unsubscribe(id string)
	Next(ctx context.Context, wait time.Duration) ([]models.Quote, error)
}

// QuoteCounter answers the persistence count query.
type QuoteCounter interface {
	Count(ctx context.Context, symbol string) (int64, error)
}

type Handler struct {
	quotes  QuoteReader
	feed    Feed
	counter QuoteCounter // nil when persistence is disabled
	logger  *zap.Logger
	maxWait time.Duration
}

func NewHandler(logger *zap.Logger, quotes QuoteReader, feed Feed, counter QuoteCounter, maxWait time.Duration) *Handler {
	return &Handler{
		quotes:  quotes,
		feed:    feed,
		counter: counter,
		logger:  logger,
		maxWait: maxWait,
	}
}

// List returns every registered symbol's quote
func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.quotes.SnapshotAll())
}

// Get returns a one-element array so clients can share the List decoder
func (h *Handler) Get(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	c.JSON(http.StatusOK, []models.Quote{h.quotes.Snapshot(symbol)})
}

// Stream pushes the quote list as server-sent events until the client leaves
func (h *Handler) Stream(c *gin.Context) {
	id, updates := h.feed.Subscribe()
	defer h.feed.Unsubscribe(id)

	h.logger.Debug("Stream opened", zap.String("subscriber", id))
	ctx := c.Request.Context()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case quotes, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("quotes", quotes)
			return true
		}
	})
	h.logger.Debug("Stream closed", zap.String("subscriber", id))
}

// Next waits for the next stream push, answering 204 if none arrives in time
func (h *Handler) Next(c *gin.Context) {
	wait := h.maxWait
	if raw := c.Query("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait, use a duration like 500ms"})
			return
		}
		if d < wait {
			wait = d
		}
	}

	quotes, err := h.feed.Next(c.Request.Context(), wait)
	if err != nil {
		if errors.Is(err, stream.ErrNoData) {
			c.Status(http.StatusNoContent)
			return
		}
		// client went away
		c.Status(http.StatusRequestTimeout)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (h *Handler) Count(c *gin.Context) {
	if h.counter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	n, err := h.counter.Count(c.Request.Context(), symbol)
	if err != nil {
		h.logger.Error("Count query failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count quotes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

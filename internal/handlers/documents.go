package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/legaldocflow/internal/models"
	"github.com/Lllllllleong/legaldocflow/internal/services"
	"github.com/Lllllllleong/legaldocflow/internal/session"
	"github.com/Lllllllleong/legaldocflow/internal/store"
)

const feedEvent = "documents"

// DocumentReader is the read side of the Record Store.
type DocumentReader interface {
	List(ctx context.Context) ([]*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
}

// Feed activates Status Feed subscriptions.
type Feed interface {
	Activate(ctx context.Context, deliver func([]*models.Document)) (*services.Subscription, error)
}

type documentsHandler struct {
	reader DocumentReader
	feed   Feed
	logger *slog.Logger
}

// NewDocumentsRouter serves the document list, single records and the
// Status Feed as Server-Sent Events. A nil verifier disables authentication.
func NewDocumentsRouter(reader DocumentReader, feed Feed, verifier *session.Verifier, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &documentsHandler{reader: reader, feed: feed, logger: logger}

	r := gin.New()
	r.Use(requestLogger(logger), gin.Recovery(), cors())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	docs := r.Group("/documents")
	docs.Use(session.GinMiddleware(verifier))
	{
		docs.GET("", h.list)
		docs.GET("/stream", h.stream)
		docs.GET("/:id", h.get)
	}
	return r
}

func (h *documentsHandler) list(c *gin.Context) {
	docs, err := h.reader.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list documents", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

func (h *documentsHandler) get(c *gin.Context) {
	doc, err := h.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Document not found"})
			return
		}
		h.logger.Error("Failed to get document", "documentId", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// stream pushes the full document list on connect and after every change.
// Only the newest list is kept while the client is slow.
func (h *documentsHandler) stream(c *gin.Context) {
	ctx := c.Request.Context()
	latest := make(chan []*models.Document, 1)
	sub, err := h.feed.Activate(ctx, func(docs []*models.Document) {
		select {
		case <-latest:
		default:
		}
		if docs == nil {
			docs = []*models.Document{}
		}
		latest <- docs
	})
	if err != nil {
		h.logger.Error("Failed to activate status feed", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	defer sub.Cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case docs := <-latest:
			c.SSEvent(feedEvent, docs)
			c.Writer.Flush()
		}
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		setCORS(c.Writer.Header())
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"session-service/internal/cloudsync"
	"session-service/internal/logger"
	"session-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RecordStore is the part of the sync engine exposed over HTTP.
type RecordStore interface {
	Put(ctx context.Context, rec cloudsync.Record) (cloudsync.Record, error)
	List(ctx context.Context) ([]cloudsync.Record, error)
	Delete(ctx context.Context, recordID string) error
	Version(ctx context.Context) (int64, error)
}

type RecordsHandler struct {
	store RecordStore
}

func NewRecordsHandler(store RecordStore) *RecordsHandler {
	return &RecordsHandler{store: store}
}

// RegisterRoutes mounts the record routes on r, which must already be
// guarded by the sync middleware.
func (h *RecordsHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/records", h.list)
	r.PUT("/records", h.put)
	r.DELETE("/records/:id", h.delete)
}

func (h *RecordsHandler) list(c *gin.Context) {
	ctx := c.Request.Context()

	records, err := h.store.List(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	version, err := h.store.Version(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version": version,
		"records": records,
	})
}

func (h *RecordsHandler) put(c *gin.Context) {
	var rec cloudsync.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		badRequest(c, err)
		return
	}

	saved, err := h.store.Put(c.Request.Context(), rec)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *RecordsHandler) delete(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecordsHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cloudsync.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, cloudsync.ErrSyncDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "sync not permitted"})
	default:
		id, _ := middleware.SyncIdentityFromContext(c.Request.Context())
		logger.Error("sync request failed", map[string]any{
			"path":        c.FullPath(),
			"identity_id": id,
			"error":       err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
	}
}

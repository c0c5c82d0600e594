package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"learnpath/internal/domain"
	"learnpath/internal/storage"
)

const (
	maxAttachmentSize   = 25 << 20
	attachmentURLExpiry = 15 * time.Minute
	storageTimeout      = 30 * time.Second
)

func (h *Handler) storageAvailable(c *gin.Context) bool {
	if h.storage == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "attachment storage is not configured"})
		return false
	}
	return true
}

func (h *Handler) uploadAttachment(c *gin.Context) {
	if !h.storageAvailable(c) {
		return
	}
	ctx, userID, id := c.Request.Context(), currentUser(c), c.Param("id")

	resource, err := h.stores.Resources.Get(ctx, userID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAttachmentSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, domain.Errorf(domain.ErrValidation, "file is required"))
		return
	}
	if fh.Size > maxAttachmentSize {
		h.respondError(c, domain.Errorf(domain.ErrValidation, "file must be at most %d MB", maxAttachmentSize>>20))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	key := storage.AttachmentKey(h.opts.KeyPrefix, userID, resource.ID, fh.Filename)
	uploadCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	if err := h.storage.Put(uploadCtx, key, f, fh.Header.Get("Content-Type")); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.stores.Resources.SetAttachment(ctx, userID, resource.ID, &key); err != nil {
		h.respondError(c, err)
		return
	}
	if old := resource.AttachmentKey; old != nil && *old != key {
		if err := h.storage.Delete(uploadCtx, *old); err != nil {
			h.logger.WithError(err).WithField("key", *old).Warn("delete replaced attachment")
		}
	}

	updated, err := h.stores.Resources.Get(ctx, userID, resource.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) attachmentURL(c *gin.Context) {
	if !h.storageAvailable(c) {
		return
	}
	ctx := c.Request.Context()
	resource, err := h.stores.Resources.Get(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if resource.AttachmentKey == nil {
		h.respondError(c, domain.ErrNotFound)
		return
	}
	url, err := h.storage.PresignGet(ctx, *resource.AttachmentKey, attachmentURLExpiry)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       url,
		"expiresAt": time.Now().UTC().Add(attachmentURLExpiry),
	})
}

func (h *Handler) deleteAttachment(c *gin.Context) {
	if !h.storageAvailable(c) {
		return
	}
	ctx, userID := c.Request.Context(), currentUser(c)
	resource, err := h.stores.Resources.Get(ctx, userID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if resource.AttachmentKey == nil {
		h.respondError(c, domain.ErrNotFound)
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	if err := h.storage.Delete(deleteCtx, *resource.AttachmentKey); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.stores.Resources.SetAttachment(ctx, userID, resource.ID, nil); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// resourceDeleted removes stored attachments of a deleted resource. Failures
// are logged; the resource is already gone.
func (h *Handler) resourceDeleted(ctx context.Context, userID string, resource *domain.Resource) {
	if h.storage == nil || resource.AttachmentKey == nil {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storageTimeout)
	defer cancel()
	prefix := storage.AttachmentPrefix(h.opts.KeyPrefix, userID, resource.ID)
	if err := h.storage.DeletePrefix(deleteCtx, prefix); err != nil {
		h.logger.WithError(err).WithField("prefix", prefix).Warn("delete resource attachments")
	}
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discord-media/internal/domain"
	"github.com/tbourn/go-discord-media/internal/repo"
	"github.com/tbourn/go-discord-media/internal/services"
	"github.com/tbourn/go-discord-media/internal/utils"
)

// ListDownloadsResponse is a page of manifest records, newest message first.
type ListDownloadsResponse struct {
	Downloads  []domain.DownloadRecord `json:"downloads"`
	Pagination Pagination              `json:"pagination"`
}

// ListDownloads serves GET /downloads.
//
// Query: channel_id (optional snowflake), page, page_size. The response
// carries a weak ETag derived from the matching row count and the newest
// created_at_utc, so an unchanged manifest answers If-None-Match with 304.
func (h *Handlers) ListDownloads(c *gin.Context) {
	ctx := c.Request.Context()
	page, size := utils.ClampPage(c.Query("page"), c.Query("page_size"))

	f := repo.DownloadFilter{ChannelID: c.Query("channel_id")}
	if f.ChannelID != "" && !utils.IsSnowflake(f.ChannelID) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel_id must be a numeric id")
		return
	}

	// Best effort: a stats failure only costs the conditional response.
	if count, latest, err := h.store.Stats(ctx, f); err == nil {
		etag := downloadsETag(f, count, latest, page, size)
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.store.ListPage(ctx, f, page, size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list downloads", err)
		return
	}
	pages := utils.TotalPages(total, size)
	ok(c, ListDownloadsResponse{
		Downloads: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   size,
			Total:      total,
			TotalPages: pages,
			HasNext:    page < pages,
		},
	})
}

// GetDownload serves GET /downloads/:attachment_id.
func (h *Handlers) GetDownload(c *gin.Context) {
	id := c.Param("attachment_id")
	if !utils.IsSnowflake(id) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "attachment_id must be a numeric id")
		return
	}
	rec, err := h.store.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrDownloadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "download not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load download", err)
	default:
		ok(c, rec)
	}
}

func downloadsETag(f repo.DownloadFilter, count int64, latest string, page, size int) string {
	scope := f.ChannelID
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf(`W/"downloads:%s:%d:%s:%d:%d"`, scope, count, latest, page, size)
}

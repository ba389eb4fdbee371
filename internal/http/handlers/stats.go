package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discord-media/internal/repo"
)

// StatsResponse summarizes the whole manifest.
type StatsResponse struct {
	Files    int64               `json:"files"`
	Bytes    int64               `json:"bytes"`
	Latest   string              `json:"latest_created_at_utc,omitempty"`
	Channels []repo.ChannelTotal `json:"channels"`
}

// Stats serves GET /stats.
func (h *Handlers) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	totals, err := h.store.ChannelTotals(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not aggregate manifest", err)
		return
	}
	resp := StatsResponse{Channels: totals}
	if resp.Channels == nil {
		resp.Channels = []repo.ChannelTotal{}
	}
	for _, t := range totals {
		resp.Files += t.Files
		resp.Bytes += t.Bytes
		if t.Latest > resp.Latest {
			resp.Latest = t.Latest
		}
	}
	ok(c, resp)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-discord-media/internal/domain"
	"github.com/tbourn/go-discord-media/internal/services"
	"github.com/tbourn/go-discord-media/internal/utils"
)

// ListRunsResponse is a page of fetch runs, most recent first.
type ListRunsResponse struct {
	Runs       []domain.Run `json:"runs"`
	Pagination Pagination   `json:"pagination"`
}

// ListRuns serves GET /runs.
func (h *Handlers) ListRuns(c *gin.Context) {
	page, size := utils.ClampPage(c.Query("page"), c.Query("page_size"))

	runs, total, err := h.store.ListRuns(c.Request.Context(), page, size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list runs", err)
		return
	}
	pages := utils.TotalPages(total, size)
	ok(c, ListRunsResponse{
		Runs: runs,
		Pagination: Pagination{
			Page:       page,
			PageSize:   size,
			Total:      total,
			TotalPages: pages,
			HasNext:    page < pages,
		},
	})
}

// GetRun serves GET /runs/:id.
func (h *Handlers) GetRun(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "run id must be a UUID")
		return
	}
	run, err := h.store.GetRun(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrRunNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "run not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load run", err)
	default:
		ok(c, run)
	}
}

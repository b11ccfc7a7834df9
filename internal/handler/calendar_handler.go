package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sidang-api/internal/service"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
	"github.com/noah-isme/sidang-api/pkg/response"
)

// CalendarHandler manages the caller's external calendar account link.
type CalendarHandler struct {
	calendar *service.CalendarSyncService
}

// NewCalendarHandler creates a new handler.
func NewCalendarHandler(calendar *service.CalendarSyncService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// Link godoc
// @Summary Link calendar account
// @Description Store OAuth tokens obtained from the consent flow
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.LinkCalendarAccountRequest true "Token payload"
// @Success 204 {object} response.Envelope
// @Router /calendar/account [put]
func (h *CalendarHandler) Link(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.LinkCalendarAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar account payload"))
		return
	}

	if err := h.calendar.LinkAccount(c.Request.Context(), principal, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unlink removes the account link.
func (h *CalendarHandler) Unlink(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.calendar.UnlinkAccount(c.Request.Context(), principal); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status godoc
// @Summary Calendar account status
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/account [get]
func (h *CalendarHandler) Status(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.calendar.AccountStatus(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

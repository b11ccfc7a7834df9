package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sidang-api/internal/service"
	"github.com/noah-isme/sidang-api/pkg/response"
)

// ExportHandler serves schedule sheet downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ScheduleSheet godoc
// @Summary Export the defense schedule
// @Description Download the schedule between two dates as PDF or CSV
// @Tags Exports
// @Produce application/pdf
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param format query string false "pdf or csv" default(pdf)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /exports/schedule [get]
func (h *ExportHandler) ScheduleSheet(c *gin.Context) {
	format := c.DefaultQuery("format", "pdf")
	doc, contentType, err := h.exports.ScheduleSheet(c.Request.Context(), c.Query("from"), c.Query("to"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("jadwal-ujian.%s", format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, doc)
}

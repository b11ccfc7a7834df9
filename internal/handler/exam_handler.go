package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sidang-api/internal/service"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
	"github.com/noah-isme/sidang-api/pkg/response"
)

// ExamHandler wires the exam lifecycle endpoints: submission, listing,
// verification decisions and scheduling.
type ExamHandler struct {
	exams        *service.ExamService
	scheduling   *service.SchedulingService
	availability *service.AvailabilityService
}

// NewExamHandler creates a new handler.
func NewExamHandler(exams *service.ExamService, scheduling *service.SchedulingService, availability *service.AvailabilityService) *ExamHandler {
	return &ExamHandler{exams: exams, scheduling: scheduling, availability: availability}
}

// Submit godoc
// @Summary Submit a thesis exam
// @Description Student files a new thesis-exam submission
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.SubmitExamRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Submit(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	exam, err := h.exams.Submit(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, exam)
}

// List godoc
// @Summary List exams
// @Description List exams visible to the caller with filters and pagination
// @Tags Exams
// @Produce json
// @Param status query string false "Filter by status"
// @Param date_from query string false "Schedule date lower bound (YYYY-MM-DD)"
// @Param date_to query string false "Schedule date upper bound (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	req := service.ExamListRequest{
		Status:    c.Query("status"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	exams, pagination, err := h.exams.List(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, exams, pagination)
}

// Get godoc
// @Summary Get exam detail
// @Description Load one exam with its examiner pair
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.exams.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Accept godoc
// @Summary Accept a submission
// @Description Admin verifies a pending submission
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.DecideExamRequest false "Optional comment"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/accept [post]
func (h *ExamHandler) Accept(c *gin.Context) {
	h.decide(c, true)
}

// Reject godoc
// @Summary Reject a submission
// @Description Admin turns down a pending submission with a reason
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.DecideExamRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/reject [post]
func (h *ExamHandler) Reject(c *gin.Context) {
	h.decide(c, false)
}

func (h *ExamHandler) decide(c *gin.Context, accepted bool) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecideExamRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
			return
		}
	}

	var exam interface{}
	var err error
	if accepted {
		exam, err = h.exams.Accept(c.Request.Context(), principal, c.Param("id"), req)
	} else {
		exam, err = h.exams.Reject(c.Request.Context(), principal, c.Param("id"), req)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, exam, nil)
}

// Assign godoc
// @Summary Schedule an exam
// @Description Assign date, window, room and examiner pair to an accepted exam
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.AssignExamRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/assign [post]
func (h *ExamHandler) Assign(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AssignExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	result, err := h.scheduling.AssignExam(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// CheckAvailability godoc
// @Summary Check availability
// @Description List which candidate lecturers and rooms are free for a window
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body service.CheckAvailabilityRequest true "Window and candidates"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scheduling/availability [post]
func (h *ExamHandler) CheckAvailability(c *gin.Context) {
	var req service.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}

	result, err := h.availability.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

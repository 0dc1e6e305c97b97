package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
	"github.com/VipuDevAI/exam-engine/internal/services"
	"github.com/VipuDevAI/exam-engine/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *utils.Validator
}

// CheckpointRequest is the body of a checkpoint call; the attempt id comes
// from the path.
type CheckpointRequest struct {
	Answers              map[uint]string                   `json:"answers"`
	QuestionStatuses     map[uint]models.QuestionNavStatus `json:"question_statuses"`
	MarkedForReview      []uint                            `json:"marked_for_review"`
	TimeRemainingSeconds int                               `json:"time_remaining_seconds" validate:"min=0"`
	VisibilityEvents     int                               `json:"visibility_events" validate:"min=0"`
}

type SubmitRequest struct {
	Answers              map[uint]string `json:"answers"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds" validate:"min=0"`
}

type ManualScoreRequest struct {
	QuestionID uint    `json:"question_id" validate:"required"`
	Marks      float64 `json:"marks" validate:"min=0"`
}

type CompleteMarkingBody struct {
	Remarks *string `json:"remarks" validate:"omitempty,max=2000"`
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *utils.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts a new attempt or resumes the active one
// @Summary Start attempt
// @Description Starts a new exam attempt; returns the existing active attempt for the same test and student
// @Tags attempts
// @Accept json
// @Produce json
// @Param request body services.StartExamRequest true "Start data"
// @Success 201 {object} models.Attempt
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.StartExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Starting attempt", "test_id", req.TestID, "student_id", req.StudentID)

	attempt, err := h.attemptService.StartExam(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// Checkpoint saves one client autosave snapshot
// @Summary Checkpoint attempt
// @Description Persists answers, navigation statuses and the reported clock for an in-progress attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param request body CheckpointRequest true "Checkpoint data"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/checkpoint [post]
func (h *AttemptHandler) Checkpoint(c *gin.Context) {
	attemptID := h.parseAttemptID(c)
	if attemptID == "" {
		return
	}

	var body CheckpointRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	err := h.attemptService.SaveState(c.Request.Context(), &services.SaveStateRequest{
		AttemptID:            attemptID,
		Answers:              body.Answers,
		QuestionStatuses:     body.QuestionStatuses,
		MarkedForReview:      body.MarkedForReview,
		TimeRemainingSeconds: body.TimeRemainingSeconds,
		VisibilityEvents:     body.VisibilityEvents,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SubmitAttempt finalizes an attempt
// @Summary Submit attempt
// @Description Submits the attempt for scoring; objective papers are marked immediately
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param request body SubmitRequest true "Final answers"
// @Success 200 {object} services.SubmitResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseAttemptID(c)
	if attemptID == "" {
		return
	}

	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	result, err := h.attemptService.SubmitExam(c.Request.Context(), &services.SubmitExamRequest{
		AttemptID:            attemptID,
		Answers:              body.Answers,
		TimeRemainingSeconds: body.TimeRemainingSeconds,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttempt returns one attempt by id
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} models.Attempt
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := h.parseAttemptID(c)
	if attemptID == "" {
		return
	}

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetActiveAttempt returns the in-progress attempt for a test and student
// @Summary Get active attempt
// @Tags attempts
// @Produce json
// @Param test_id query uint true "Test ID"
// @Param student_id query string true "Student ID"
// @Success 200 {object} models.Attempt
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /attempts/active [get]
func (h *AttemptHandler) GetActiveAttempt(c *gin.Context) {
	testID, err := strconv.ParseUint(c.Query("test_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid test_id",
			Details: err.Error(),
		})
		return
	}
	studentID := strings.TrimSpace(c.Query("student_id"))
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "student_id is required"})
		return
	}

	attempt, err := h.attemptService.GetActiveAttempt(c.Request.Context(), uint(testID), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if attempt == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListAttempts lists attempts with filters and pagination
// @Summary List attempts
// @Tags attempts
// @Produce json
// @Param status query string false "Attempt status"
// @Param test_id query uint false "Test ID"
// @Param student_id query string false "Student ID"
// @Param school_id query string false "School ID"
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {object} ListResponse
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	filters := h.parseAttemptFilters(c)

	attempts, total, err := h.attemptService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Items: attempts, Total: total})
}

// RecordManualScore records one human-awarded mark on a submitted attempt
// @Summary Record manual score
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param request body ManualScoreRequest true "Manual score"
// @Success 200 {object} models.Attempt
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/manual-score [post]
func (h *AttemptHandler) RecordManualScore(c *gin.Context) {
	attemptID := h.parseAttemptID(c)
	if attemptID == "" {
		return
	}

	var body ManualScoreRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Recording manual score",
		"attempt_id", attemptID, "question_id", body.QuestionID)

	attempt, err := h.attemptService.RecordManualScore(c.Request.Context(), &services.RecordManualScoreRequest{
		AttemptID:  attemptID,
		QuestionID: body.QuestionID,
		Marks:      body.Marks,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// CompleteMarking finalizes manual marking for a submitted attempt
// @Summary Complete marking
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param request body CompleteMarkingBody true "Optional remarks"
// @Success 200 {object} models.Attempt
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/complete-marking [post]
func (h *AttemptHandler) CompleteMarking(c *gin.Context) {
	attemptID := h.parseAttemptID(c)
	if attemptID == "" {
		return
	}

	var body CompleteMarkingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Completing marking", "attempt_id", attemptID)

	attempt, err := h.attemptService.CompleteMarking(c.Request.Context(), &services.CompleteMarkingRequest{
		AttemptID: attemptID,
		Remarks:   body.Remarks,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ===== HELPERS =====

func (h *AttemptHandler) parseAttemptID(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid id",
			Details: "ID cannot be empty",
		})
	}
	return id
}

func (h *AttemptHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.AttemptFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "started_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if status := c.Query("status"); status != "" {
		filters.Status = models.AttemptStatus(status)
	}
	if testIDStr := c.Query("test_id"); testIDStr != "" {
		if testID, err := strconv.ParseUint(testIDStr, 10, 32); err == nil {
			id := uint(testID)
			filters.TestID = &id
		}
	}
	if studentID := c.Query("student_id"); studentID != "" {
		filters.StudentID = &studentID
	}
	if schoolID := c.Query("school_id"); schoolID != "" {
		filters.SchoolID = &schoolID
	}
	return filters
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var poolErr *services.InsufficientPoolError
	if errors.As(err, &poolErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Question pool too small for this test",
			Details: poolErr,
			Code:    "INSUFFICIENT_QUESTION_POOL",
		})
		return
	}

	var stateErr *services.StateTransitionError
	if errors.As(err, &stateErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Operation not allowed in the attempt's current status",
			Details: stateErr,
			Code:    "INVALID_STATE_TRANSITION",
		})
		return
	}

	var scoreErr *services.ManualScoreError
	if errors.As(err, &scoreErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Invalid manual score",
			Details: scoreErr,
			Code:    "INVALID_MANUAL_SCORE",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamDisabled):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Exams are currently disabled",
			Code:    "EXAM_DISABLED",
		})
	case errors.Is(err, services.ErrMarkingIncomplete):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Manual marking is incomplete",
			Details: err.Error(),
			Code:    "MARKING_INCOMPLETE",
		})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: err.Error(),
		})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt was modified concurrently, retry the call",
			Code:    "CONCURRENT_MODIFICATION",
		})
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

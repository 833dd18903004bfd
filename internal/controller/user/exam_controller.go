package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepboard/examengine/internal/controller"
	"github.com/prepboard/examengine/internal/dto"
	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/model"
	"github.com/prepboard/examengine/internal/service"
	"github.com/rs/zerolog/log"
)

// ExamController is the student-facing surface: browsing published tests,
// running a timed session against one, and reading results and aggregates.
type ExamController struct {
	catalog   service.CatalogService
	sessions  service.SessionService
	analytics service.AnalyticsService
}

func NewExamController(catalog service.CatalogService, sessions service.SessionService, analytics service.AnalyticsService) *ExamController {
	return &ExamController{catalog: catalog, sessions: sessions, analytics: analytics}
}

func (c *ExamController) RegisterRoutes(group *gin.RouterGroup) {
	tests := group.Group("/tests")
	tests.GET("", c.ListTests)
	tests.GET("/:test_id", c.GetTest)
	tests.POST("/:test_id/sessions", c.StartSession)
	tests.GET("/:test_id/sessions/ongoing", c.GetOngoingSession)
	tests.GET("/:test_id/analytics", c.GetAnalytics)
	tests.GET("/:test_id/insights", c.GetInsights)

	sessions := group.Group("/sessions")
	sessions.GET("/:session_id", c.GetSession)
	sessions.PUT("/:session_id/answers", c.SaveAnswer)
	sessions.POST("/:session_id/submit", c.SubmitSession)
	sessions.GET("/:session_id/result", c.GetResult)
}

// ListTests godoc
// @Summary List published tests
// @Tags Exams
// @Produce json
// @Success 200 {array} dto.TestSummaryDTO
// @Router /tests [get]
func (c *ExamController) ListTests(ctx *gin.Context) {
	resp, err := c.catalog.ListTests(model.TestStatusPublished)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetTest godoc
// @Summary Get a published test with its questions
// @Description Question rows never include the correct answers or explanations.
// @Tags Exams
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /tests/{test_id} [get]
func (c *ExamController) GetTest(ctx *gin.Context) {
	testID, ok := controller.UintParam(ctx, "test_id")
	if !ok {
		return
	}

	resp, err := c.catalog.GetTest(testID)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	// Drafts do not exist as far as students are concerned.
	if resp.Status != string(model.TestStatusPublished) {
		controller.WriteError(ctx, errs.NotFound("test %d not found", testID))
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// StartSession godoc
// @Summary Start a timed session on a test
// @Description Assigns the server-side start time and arms the deadline timer. A student can hold at most one in-progress session per test.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param test_id path int true "Test ID"
// @Param body body dto.StartSessionDTO true "Student starting the session"
// @Success 201 {object} dto.SessionResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Test not published"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "A session is already in progress"
// @Router /tests/{test_id}/sessions [post]
func (c *ExamController) StartSession(ctx *gin.Context) {
	testID, ok := controller.UintParam(ctx, "test_id")
	if !ok {
		return
	}
	var req dto.StartSessionDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.WriteBindError(ctx, err)
		return
	}

	resp, err := c.sessions.Start(testID, req.StudentID)
	if err != nil {
		log.Warn().Err(err).Uint("testID", testID).Uint("studentID", req.StudentID).Msg("StartSession: rejected")
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GetOngoingSession godoc
// @Summary Resume the in-progress session on a test
// @Description Returns the session with its saved answers and the remaining time, so a reconnecting client can pick up where it left off.
// @Tags Sessions
// @Produce json
// @Param test_id path int true "Test ID"
// @Param student_id query int true "Student ID"
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 404 {object} dto.ErrorResponse "No ongoing session"
// @Router /tests/{test_id}/sessions/ongoing [get]
func (c *ExamController) GetOngoingSession(ctx *gin.Context) {
	testID, ok := controller.UintParam(ctx, "test_id")
	if !ok {
		return
	}
	studentID, ok := controller.UintQuery(ctx, "student_id")
	if !ok {
		return
	}

	resp, err := c.sessions.GetOngoing(testID, studentID)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetSession godoc
// @Summary Get a session snapshot
// @Tags Sessions
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{session_id} [get]
func (c *ExamController) GetSession(ctx *gin.Context) {
	sessionID, ok := controller.UintParam(ctx, "session_id")
	if !ok {
		return
	}

	resp, err := c.sessions.GetSession(sessionID)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SaveAnswer godoc
// @Summary Save or overwrite one answer
// @Description Last write wins per question. Writes against a completed session are rejected with 409.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param session_id path int true "Session ID"
// @Param body body dto.SaveAnswerDTO true "Answer value, shaped by the question type"
// @Success 204 "Answer stored"
// @Failure 400 {object} dto.ErrorResponse "Value does not match the question type"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Session already completed"
// @Router /sessions/{session_id}/answers [put]
func (c *ExamController) SaveAnswer(ctx *gin.Context) {
	sessionID, ok := controller.UintParam(ctx, "session_id")
	if !ok {
		return
	}
	var req dto.SaveAnswerDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.WriteBindError(ctx, err)
		return
	}

	if err := c.sessions.SaveAnswer(sessionID, req); err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// SubmitSession godoc
// @Summary Submit a session for grading
// @Description Freezes the answer ledger and grades it. Submitting an already-completed session returns the stored result unchanged.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param session_id path int true "Session ID"
// @Param body body dto.SubmitSessionDTO false "Submission metadata"
// @Success 200 {object} dto.ResultResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sessions/{session_id}/submit [post]
func (c *ExamController) SubmitSession(ctx *gin.Context) {
	sessionID, ok := controller.UintParam(ctx, "session_id")
	if !ok {
		return
	}

	resp, err := c.sessions.Submit(sessionID, model.SubmitTriggerManual)
	if err != nil {
		log.Error().Err(err).Uint("sessionID", sessionID).Msg("SubmitSession: failed")
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetResult godoc
// @Summary Get the graded result of a completed session
// @Description Includes the per-question breakdown with correct answers and explanations. 409 while the session is still in progress.
// @Tags Sessions
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.ResultResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Session not completed yet"
// @Router /sessions/{session_id}/result [get]
func (c *ExamController) GetResult(ctx *gin.Context) {
	sessionID, ok := controller.UintParam(ctx, "session_id")
	if !ok {
		return
	}

	resp, err := c.sessions.GetResult(sessionID)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetAnalytics godoc
// @Summary Aggregate analytics for a test
// @Description Pass rate, score distribution, attempts over time and per-question success rates across all completed sessions.
// @Tags Analytics
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} analytics.Snapshot
// @Failure 404 {object} dto.ErrorResponse
// @Router /tests/{test_id}/analytics [get]
func (c *ExamController) GetAnalytics(ctx *gin.Context) {
	testID, ok := controller.UintParam(ctx, "test_id")
	if !ok {
		return
	}

	resp, err := c.analytics.GetAnalytics(testID)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetInsights godoc
// @Summary Difficulty insights for a test
// @Description Difficulty distribution and the most-missed questions, derived from per-question success rates.
// @Tags Analytics
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} analytics.Insights
// @Failure 404 {object} dto.ErrorResponse
// @Router /tests/{test_id}/insights [get]
func (c *ExamController) GetInsights(ctx *gin.Context) {
	testID, ok := controller.UintParam(ctx, "test_id")
	if !ok {
		return
	}

	resp, err := c.analytics.GetInsights(testID)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

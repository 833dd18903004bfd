package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepboard/examengine/internal/controller"
	"github.com/prepboard/examengine/internal/dto"
	"github.com/prepboard/examengine/internal/model"
	"github.com/prepboard/examengine/internal/service"
	"github.com/rs/zerolog/log"
)

type TestController struct {
	catalog service.CatalogService
}

func NewTestController(catalog service.CatalogService) *TestController {
	return &TestController{catalog: catalog}
}

func (c *TestController) RegisterRoutes(group *gin.RouterGroup) {
	tests := group.Group("/tests")
	tests.POST("", c.CreateTest)
	tests.GET("", c.ListTests)
	tests.GET("/:test_id", c.GetTest)
	tests.POST("/:test_id/publish", c.PublishTest)
}

// CreateTest godoc
// @Summary (Admin) Create a test draft
// @Description Creates a draft test with its full question set. Correct-answer shapes are validated against each question type.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test_data body dto.TestCreateDTO true "Test with questions"
// @Success 201 {object} dto.TestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid body or question definition"
// @Failure 500 {object} dto.ErrorResponse
// @Router /admin/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	var req dto.TestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin CreateTest: failed to bind JSON")
		controller.WriteBindError(ctx, err)
		return
	}

	resp, err := c.catalog.CreateTest(req)
	if err != nil {
		log.Warn().Err(err).Str("name", req.Name).Msg("Admin CreateTest: rejected")
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// PublishTest godoc
// @Summary (Admin) Publish a draft test
// @Description Flips a draft to published, recomputing total marks. Published tests are immutable and visible to students.
// @Tags Admin - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Test has no questions"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Already published"
// @Router /admin/tests/{test_id}/publish [post]
func (c *TestController) PublishTest(ctx *gin.Context) {
	testID, ok := controller.UintParam(ctx, "test_id")
	if !ok {
		return
	}

	resp, err := c.catalog.PublishTest(testID)
	if err != nil {
		log.Warn().Err(err).Uint("testID", testID).Msg("Admin PublishTest: rejected")
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetTest godoc
// @Summary (Admin) Get a test with its questions
// @Tags Admin - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/tests/{test_id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	testID, ok := controller.UintParam(ctx, "test_id")
	if !ok {
		return
	}

	resp, err := c.catalog.GetTest(testID)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListTests godoc
// @Summary (Admin) List tests by status
// @Tags Admin - Tests
// @Produce json
// @Param status query string false "draft or published" default(draft)
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse
// @Router /admin/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	status := model.TestStatus(ctx.DefaultQuery("status", string(model.TestStatusDraft)))
	if status != model.TestStatusDraft && status != model.TestStatusPublished {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "status must be draft or published"})
		return
	}

	resp, err := c.catalog.ListTests(status)
	if err != nil {
		controller.WriteError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

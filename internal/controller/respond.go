package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prepboard/examengine/internal/dto"
	"github.com/prepboard/examengine/internal/errs"
)

// StatusOf maps a classified service error to its HTTP status.
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict, errs.KindSessionClosed:
		return http.StatusConflict
	case errs.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders a service error as the common error envelope.
func WriteError(ctx *gin.Context, err error) {
	ctx.JSON(StatusOf(err), dto.ErrorResponse{Message: err.Error()})
}

// WriteBindError renders a request binding failure.
func WriteBindError(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body", Details: []string{err.Error()}})
}

// UintParam parses a numeric path parameter. It writes the 400 response
// itself; callers just return on !ok.
func UintParam(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid " + name + " path parameter", Details: []string{raw}})
		return 0, false
	}
	return uint(id), true
}

// UintQuery parses a required numeric query parameter.
func UintQuery(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Query(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: name + " query parameter is required and must be a positive integer", Details: []string{raw}})
		return 0, false
	}
	return uint(id), true
}

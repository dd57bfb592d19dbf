package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wavechat/client/internal/domain/shared"
	"github.com/wavechat/client/internal/infrastructure/logger"
	"github.com/wavechat/client/internal/interfaces/http/dto"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse("BAD_REQUEST", message))
}

// DomainError maps a domain error onto a local API status code
func (h *BaseHandler) DomainError(c *gin.Context, err error) {
	var de *shared.DomainError
	code, status := "INTERNAL", http.StatusInternalServerError
	switch {
	case shared.IsAuthRejected(err):
		code, status = "AUTH_REJECTED", http.StatusUnauthorized
	case shared.IsTransient(err):
		// Transient failures are not errors to the UI: it shows the
		// "checking connection" indicator and the action stays queued.
		code, status = "TRANSIENT_NETWORK", http.StatusAccepted
	case shared.IsRouteUnavailable(err):
		code, status = "ROUTE_UNAVAILABLE", http.StatusBadGateway
	case shared.IsStorageExhausted(err):
		code, status = "STORAGE_EXHAUSTED", http.StatusInsufficientStorage
	case errors.As(err, &de):
		code, status = de.Code, http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		logger.FromGinContext(c).Error("unhandled error", zap.Error(err))
	}
	c.JSON(status, dto.NewErrorResponse(code, err.Error()))
}

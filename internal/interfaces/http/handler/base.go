package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/interfaces/http/dto"
)

// requestIDKey matches the context key set by the request ID middleware
const requestIDKey = "request_id"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// PayloadTooLarge sends a 413 request entity too large response
func (h *BaseHandler) PayloadTooLarge(c *gin.Context, message string) {
	h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps application and domain errors to HTTP responses.
// Unrecognized errors become 500s with a generic message so internals never
// leak to clients.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var transitionErr *shared.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInvalidState, transitionErr.Error(), requestID))
		return
	}

	var terminalErr *shared.TerminalStateError
	if errors.As(err, &terminalErr) {
		c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInvalidState, terminalErr.Error(), requestID))
		return
	}

	var gatewayErr *shared.GatewayError
	if errors.As(err, &gatewayErr) {
		code := dto.ErrCodeGatewayRejected
		if gatewayErr.Transient {
			code = dto.ErrCodeGatewayUnavailable
		}
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(
			code, gatewayErr.Message, requestID))
		return
	}

	// Retries exhausted against the gateway surface as 502 regardless of
	// the final cause.
	var processingErr *shared.ProcessingError
	if errors.As(err, &processingErr) {
		c.JSON(http.StatusBadGateway, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeGatewayUnavailable, "Payment gateway is unavailable", requestID))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(
			code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal, "An unexpected error occurred", requestID))
}

package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/amane-dev/kakaku-tracker/app/dto"
	businessflow "github.com/amane-dev/kakaku-tracker/business_flow"
	"github.com/amane-dev/kakaku-tracker/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type IngestHandlerInterface interface {
	IngestListings(c fiber.Ctx) error
	ListSessions(c fiber.Ctx) error
}

type IngestHandler struct {
	flow      businessflow.IngestFlow
	validator *validator.Validate
}

func NewIngestHandler(flow businessflow.IngestFlow) IngestHandlerInterface {
	return &IngestHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *IngestHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *IngestHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// IngestListings accepts one scraped batch for canonical ingest
// @Summary Ingest Listings
// @Tags Ingest
// @Accept json
// @Produce json
// @Param request body dto.IngestListingsRequest true "Listings batch"
// @Success 201 {object} dto.APIResponse{data=dto.IngestListingsResponse}
// @Router /api/v1/listings [post]
func (h *IngestHandler) IngestListings(c fiber.Ctx) error {
	var req dto.IngestListingsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.IngestListings(h.createRequestContext(c, "/api/v1/listings"), &req, metadata)
	if err != nil {
		log.Println("Listing ingest failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to ingest listings", "INGEST_LISTINGS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Listings ingested", result)
}

// ListSessions returns recent ingest sessions
// @Summary List Ingest Sessions
// @Tags Ingest
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListIngestSessionsResponse}
// @Router /api/v1/sessions [get]
func (h *IngestHandler) ListSessions(c fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	result, err := h.flow.ListSessions(h.createRequestContext(c, "/api/v1/sessions"), limit, offset)
	if err != nil {
		log.Println("List ingest sessions failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list sessions", "LIST_SESSIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Ingest sessions retrieved", result)
}

func (h *IngestHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *IngestHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}

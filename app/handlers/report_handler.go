package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/amane-dev/kakaku-tracker/app/dto"
	businessflow "github.com/amane-dev/kakaku-tracker/business_flow"
	"github.com/amane-dev/kakaku-tracker/utils"
	"github.com/gofiber/fiber/v3"
)

type ReportHandlerInterface interface {
	GetStats(c fiber.Ctx) error
	GetPriceChanges(c fiber.Ctx) error
	GetTopChanges(c fiber.Ctx) error
	ExportChanges(c fiber.Ctx) error
	ListProducts(c fiber.Ctx) error
	GetProductHistory(c fiber.Ctx) error
	DeactivateProduct(c fiber.Ctx) error
	GetKeywordChanges(c fiber.Ctx) error
}

type ReportHandler struct {
	changeFlow  businessflow.ChangeDetectionFlow
	insightFlow businessflow.InsightFlow
}

func NewReportHandler(changeFlow businessflow.ChangeDetectionFlow, insightFlow businessflow.InsightFlow) ReportHandlerInterface {
	return &ReportHandler{
		changeFlow:  changeFlow,
		insightFlow: insightFlow,
	}
}

func (h *ReportHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *ReportHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// GetStats returns canonical store statistics
// @Summary Store Statistics
// @Tags Reports
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.StatsResponse}
// @Router /api/v1/stats [get]
func (h *ReportHandler) GetStats(c fiber.Ctx) error {
	result, err := h.insightFlow.GetStats(h.createRequestContext(c, "/api/v1/stats"))
	if err != nil {
		log.Println("Get stats failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute statistics", "GET_STATS_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved", result)
}

// GetPriceChanges returns price movements inside the lookback window
// @Summary Price Changes
// @Tags Reports
// @Produce json
// @Param hours query int false "Lookback window in hours"
// @Success 200 {object} dto.APIResponse{data=dto.ListPriceChangesResponse}
// @Router /api/v1/changes [get]
func (h *ReportHandler) GetPriceChanges(c fiber.Ctx) error {
	hours := h.queryInt(c, "hours", 0)

	result, err := h.changeFlow.GetPriceChanges(h.createRequestContext(c, "/api/v1/changes"), hours)
	if err != nil {
		if businessflow.IsInvalidWindow(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Window hours must not be negative", "INVALID_WINDOW", nil)
		}
		log.Println("Get price changes failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute price changes", "GET_PRICE_CHANGES_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Price changes retrieved", result)
}

// GetTopChanges returns the N largest price movements
// @Summary Top Price Changes
// @Tags Reports
// @Produce json
// @Param n query int false "Number of changes to return"
// @Param hours query int false "Lookback window in hours"
// @Success 200 {object} dto.APIResponse{data=dto.TopChangesResponse}
// @Router /api/v1/changes/top [get]
func (h *ReportHandler) GetTopChanges(c fiber.Ctx) error {
	n := h.queryInt(c, "n", 10)
	hours := h.queryInt(c, "hours", 0)

	result, err := h.insightFlow.GetTopChanges(h.createRequestContext(c, "/api/v1/changes/top"), n, hours)
	if err != nil {
		if businessflow.IsInvalidWindow(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Window hours must not be negative", "INVALID_WINDOW", nil)
		}
		log.Println("Get top changes failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute top changes", "GET_TOP_CHANGES_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Top changes retrieved", result)
}

// ExportChanges returns the price change report as an xlsx file
// @Summary Export Price Changes
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param hours query int false "Lookback window in hours"
// @Success 200 {string} string "xlsx file"
// @Router /api/v1/changes/export [get]
func (h *ReportHandler) ExportChanges(c fiber.Ctx) error {
	hours := h.queryInt(c, "hours", 0)

	filename, data, err := h.insightFlow.ExportChanges(h.createRequestContext(c, "/api/v1/changes/export"), hours)
	if err != nil {
		if businessflow.IsInvalidWindow(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Window hours must not be negative", "INVALID_WINDOW", nil)
		}
		log.Println("Export changes failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate export", "EXPORT_CHANGES_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// ListProducts returns a page of tracked products
// @Summary List Products
// @Tags Reports
// @Produce json
// @Param platform query string false "Platform filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListProductsResponse}
// @Router /api/v1/products [get]
func (h *ReportHandler) ListProducts(c fiber.Ctx) error {
	platform := c.Query("platform")
	page := h.queryInt(c, "page", 1)
	pageSize := h.queryInt(c, "page_size", 20)

	result, err := h.insightFlow.ListProducts(h.createRequestContext(c, "/api/v1/products"), platform, page, pageSize)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown platform", "INVALID_PLATFORM", nil)
		}
		log.Println("List products failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list products", "LIST_PRODUCTS_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Products retrieved", result)
}

// GetProductHistory returns one product with its observation history
// @Summary Product History
// @Tags Reports
// @Produce json
// @Param canonical_id path string true "Canonical product ID"
// @Success 200 {object} dto.APIResponse{data=dto.ProductHistoryResponse}
// @Router /api/v1/products/{canonical_id}/history [get]
func (h *ReportHandler) GetProductHistory(c fiber.Ctx) error {
	canonicalID := c.Params("canonical_id")
	if canonicalID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Canonical ID is required", "MISSING_CANONICAL_ID", nil)
	}

	result, err := h.insightFlow.GetProductHistory(h.createRequestContext(c, "/api/v1/products/:canonical_id/history"), canonicalID)
	if err != nil {
		if businessflow.IsProductNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Product not found", "PRODUCT_NOT_FOUND", nil)
		}
		log.Println("Get product history failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load product history", "GET_PRODUCT_HISTORY_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Product history retrieved", result)
}

// DeactivateProduct retires a product from monitoring
// @Summary Deactivate Product
// @Tags Reports
// @Produce json
// @Param canonical_id path string true "Canonical product ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeactivateProductResponse}
// @Router /api/v1/products/{canonical_id}/deactivate [post]
func (h *ReportHandler) DeactivateProduct(c fiber.Ctx) error {
	canonicalID := c.Params("canonical_id")
	if canonicalID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Canonical ID is required", "MISSING_CANONICAL_ID", nil)
	}

	result, err := h.insightFlow.DeactivateProduct(h.createRequestContext(c, "/api/v1/products/:canonical_id/deactivate"), canonicalID)
	if err != nil {
		if businessflow.IsProductNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Product not found", "PRODUCT_NOT_FOUND", nil)
		}
		log.Println("Deactivate product failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to deactivate product", "DEACTIVATE_PRODUCT_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Product deactivated", result)
}

// GetKeywordChanges diffs the two latest snapshots for a keyword
// @Summary Keyword Changes
// @Tags Reports
// @Produce json
// @Param keyword path string true "Search keyword"
// @Success 200 {object} dto.APIResponse{data=dto.KeywordChangesResponse}
// @Router /api/v1/keywords/{keyword}/changes [get]
func (h *ReportHandler) GetKeywordChanges(c fiber.Ctx) error {
	keyword := c.Params("keyword")
	if keyword == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Keyword is required", "MISSING_KEYWORD", nil)
	}

	result, err := h.changeFlow.GetKeywordChanges(h.createRequestContext(c, "/api/v1/keywords/:keyword/changes"), keyword)
	if err != nil {
		log.Println("Get keyword changes failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute keyword changes", "GET_KEYWORD_CHANGES_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Keyword changes retrieved", result)
}

func (h *ReportHandler) queryInt(c fiber.Ctx, key string, def int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func (h *ReportHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *ReportHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}

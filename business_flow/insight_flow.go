package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amane-dev/kakaku-tracker/app/dto"
	"github.com/amane-dev/kakaku-tracker/config"
	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/repository"
	"github.com/amane-dev/kakaku-tracker/utils"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// InsightFlow defines the reporting use cases over the canonical store
type InsightFlow interface {
	GetStats(ctx context.Context) (*dto.StatsResponse, error)
	GetTopChanges(ctx context.Context, n, windowHours int) (*dto.TopChangesResponse, error)
	ListProducts(ctx context.Context, platform string, page, pageSize int) (*dto.ListProductsResponse, error)
	GetProductHistory(ctx context.Context, canonicalID string) (*dto.ProductHistoryResponse, error)
	DeactivateProduct(ctx context.Context, canonicalID string) (*dto.DeactivateProductResponse, error)
	ExportChanges(ctx context.Context, windowHours int) (string, []byte, error)
}

type InsightFlowImpl struct {
	canonicalRepo repository.CanonicalProductRepository
	obsRepo       repository.ObservationRepository
	changeFlow    ChangeDetectionFlow
	rc            *redis.Client
	cacheConfig   *config.CacheConfig
}

func NewInsightFlow(
	canonicalRepo repository.CanonicalProductRepository,
	obsRepo repository.ObservationRepository,
	changeFlow ChangeDetectionFlow,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) InsightFlow {
	return &InsightFlowImpl{
		canonicalRepo: canonicalRepo,
		obsRepo:       obsRepo,
		changeFlow:    changeFlow,
		rc:            rc,
		cacheConfig:   cacheConfig,
	}
}

// GetStats summarizes the canonical store, served from cache when fresh
func (f *InsightFlowImpl) GetStats(ctx context.Context) (resp *dto.StatsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_STATS_FAILED", "Failed to compute store statistics", err)
		}
	}()

	cacheKey := redisKey(*f.cacheConfig, utils.StatsCacheKey)
	if f.rc != nil && f.cacheConfig.Enabled {
		if raw, cacheErr := f.rc.Get(ctx, cacheKey).Bytes(); cacheErr == nil && len(raw) > 0 {
			var cached dto.StatsResponse
			if json.Unmarshal(raw, &cached) == nil {
				cached.Message = "Statistics retrieved from cache"
				return &cached, nil
			}
		}
	}

	stats, err := f.canonicalRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	response := &dto.StatsResponse{
		Message:                  "Statistics computed successfully",
		TotalCanonicalProducts:   stats.TotalCanonicalProducts,
		ActiveProducts:           stats.ActiveProducts,
		TotalPricePoints:         stats.TotalPricePoints,
		ProductsWithPriceHistory: stats.ProductsWithPriceHistory,
		ByPlatform:               stats.ByPlatform,
	}

	if f.rc != nil && f.cacheConfig.Enabled {
		if raw, marshalErr := json.Marshal(response); marshalErr == nil {
			_ = f.rc.Set(ctx, cacheKey, raw, f.cacheConfig.DefaultTTL).Err()
		}
	}
	return response, nil
}

// GetTopChanges returns the N largest price movements in the window
func (f *InsightFlowImpl) GetTopChanges(ctx context.Context, n, windowHours int) (resp *dto.TopChangesResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_TOP_CHANGES_FAILED", "Failed to compute top changes", err)
		}
	}()

	if n < 1 || n > 100 {
		err = ErrInvalidTopN
		return nil, err
	}

	changes, err := f.changeFlow.GetPriceChanges(ctx, windowHours)
	if err != nil {
		return nil, err
	}

	items := changes.Items
	if len(items) > n {
		items = items[:n]
	}
	return &dto.TopChangesResponse{
		Message: "Top changes computed successfully",
		Items:   items,
	}, nil
}

// ListProducts returns a page of tracked products, optionally for one platform
func (f *InsightFlowImpl) ListProducts(ctx context.Context, platform string, page, pageSize int) (resp *dto.ListProductsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_PRODUCTS_FAILED", "Failed to list products", err)
		}
	}()

	if page < 1 {
		err = ErrInvalidPage
		return nil, err
	}
	if pageSize < 1 || pageSize > 100 {
		err = ErrInvalidPageSize
		return nil, err
	}

	var platformFilter *models.Platform
	if platform != "" {
		p := models.Platform(platform)
		if !p.Valid() {
			err = ErrInvalidPlatform
			return nil, err
		}
		platformFilter = &p
	}

	products, err := f.canonicalRepo.ListActive(ctx, platformFilter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	filter := models.CanonicalProductFilter{IsActive: utils.ToPtr(true), Platform: platformFilter}
	total, err := f.canonicalRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]dto.CanonicalProductDTO, 0, len(products))
	for _, product := range products {
		items = append(items, ToCanonicalProductDTO(*product))
	}

	return &dto.ListProductsResponse{
		Message: "Products retrieved successfully",
		Items:   items,
		Total:   total,
	}, nil
}

// GetProductHistory returns one product with its full observation history
func (f *InsightFlowImpl) GetProductHistory(ctx context.Context, canonicalID string) (resp *dto.ProductHistoryResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_PRODUCT_HISTORY_FAILED", "Failed to load product history", err)
		}
	}()

	product, err := f.canonicalRepo.ByCanonicalID(ctx, canonicalID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		err = ErrProductNotFound
		return nil, err
	}

	observations, err := f.obsRepo.ListByCanonicalID(ctx, canonicalID)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ObservationDTO, 0, len(observations))
	for _, observation := range observations {
		items = append(items, ToObservationDTO(*observation))
	}

	return &dto.ProductHistoryResponse{
		Message:      "Product history retrieved successfully",
		Product:      ToCanonicalProductDTO(*product),
		Observations: items,
	}, nil
}

// DeactivateProduct retires a product from monitoring. Its history stays.
func (f *InsightFlowImpl) DeactivateProduct(ctx context.Context, canonicalID string) (resp *dto.DeactivateProductResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("DEACTIVATE_PRODUCT_FAILED", "Failed to deactivate product", err)
		}
	}()

	if err = f.canonicalRepo.SetActive(ctx, canonicalID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrProductNotFound
		}
		return nil, err
	}

	return &dto.DeactivateProductResponse{
		Message:     "Product deactivated successfully",
		CanonicalID: canonicalID,
		IsActive:    false,
	}, nil
}

// ExportChanges builds an xlsx report of price changes in the window
func (f *InsightFlowImpl) ExportChanges(ctx context.Context, windowHours int) (string, []byte, error) {
	changes, err := f.changeFlow.GetPriceChanges(ctx, windowHours)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_CHANGES_FAILED", "Failed to compute price changes for export", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "price_changes"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"canonical_id", "platform", "title", "url", "old_price", "new_price", "change_amount", "change_percent", "old_time", "new_time"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, item := range changes.Items {
		percent := ""
		if item.ChangePercent != nil {
			percent = strconv.FormatFloat(*item.ChangePercent, 'f', 2, 64)
		}
		record := []string{
			item.CanonicalID,
			item.Platform,
			item.Title,
			item.URL,
			strconv.FormatFloat(item.OldPrice, 'f', 2, 64),
			strconv.FormatFloat(item.NewPrice, 'f', 2, 64),
			strconv.FormatFloat(item.ChangeAmount, 'f', 2, 64),
			percent,
			item.OldTime,
			item.NewTime,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("price_changes_%s_%dh.xlsx", time.Now().UTC().Format("20060102"), changes.WindowHours)
	return filename, buf.Bytes(), nil
}

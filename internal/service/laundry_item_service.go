package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/domain/repository"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

const (
	activeItemsCacheKey = "items:active"
	activeItemsCacheTTL = 5 * time.Minute
)

// LaundryItemService manages the catalog and caches the public listing.
type LaundryItemService struct {
	items repository.LaundryItemRepository
	cache repository.CacheRepository
	blobs BlobStore
}

// NewLaundryItemService wires the catalog. cache and blobs are optional.
func NewLaundryItemService(items repository.LaundryItemRepository, cache repository.CacheRepository, blobs BlobStore) (*LaundryItemService, error) {
	if items == nil {
		return nil, fmt.Errorf("LaundryItemRepository is required for LaundryItemService")
	}
	return &LaundryItemService{items: items, cache: cache, blobs: blobs}, nil
}

type CreateItemInput struct {
	Title               string
	PricePerUnit        string
	MaxQuantityPerOrder int
	Category            string
	Description         string
	IsActive            *bool
	Image               *Upload
}

// UpdateItemInput fields left nil are not touched.
type UpdateItemInput struct {
	Title               *string
	PricePerUnit        *string
	MaxQuantityPerOrder *int
	Category            *string
	Description         *string
	IsActive            *bool
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price per unit must be a number", apperrors.ErrValidation)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: price per unit cannot be negative", apperrors.ErrValidation)
	}
	return price.Round(2), nil
}

func validateItemText(title, description string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if len([]rune(title)) > 100 {
		return fmt.Errorf("%w: title must be at most 100 characters", apperrors.ErrValidation)
	}
	if len([]rune(description)) > 500 {
		return fmt.Errorf("%w: description must be at most 500 characters", apperrors.ErrValidation)
	}
	return nil
}

func (s *LaundryItemService) Create(ctx context.Context, input CreateItemInput) (*entity.LaundryItem, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := validateItemText(input.Title, input.Description); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.PricePerUnit) == "" {
		return nil, fmt.Errorf("%w: title and price per unit are required", apperrors.ErrValidation)
	}
	price, err := parsePrice(input.PricePerUnit)
	if err != nil {
		return nil, err
	}
	if input.MaxQuantityPerOrder == 0 {
		input.MaxQuantityPerOrder = entity.DefaultMaxQuantityPerOrder
	}
	if input.MaxQuantityPerOrder < 1 {
		return nil, fmt.Errorf("%w: max quantity must be at least 1", apperrors.ErrValidation)
	}
	category := entity.ItemCategory(strings.ToLower(strings.TrimSpace(input.Category)))
	if category == "" {
		category = entity.CategoryClothes
	}
	if !entity.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", apperrors.ErrValidation, category)
	}

	item := &entity.LaundryItem{
		Title:               input.Title,
		PricePerUnit:        price,
		MaxQuantityPerOrder: input.MaxQuantityPerOrder,
		Category:            category,
		Description:         input.Description,
		IsActive:            true,
	}
	if input.Image != nil && s.blobs != nil {
		key, url, err := s.blobs.Put(ctx, "items", *input.Image)
		if err != nil {
			return nil, uploadError("image", err)
		}
		item.ImageKey, item.ImageURL = key, url
	}

	if err := s.items.Create(item); err != nil {
		s.dropBlob(ctx, item.ImageKey)
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: an item with this title already exists", apperrors.ErrConflict)
		}
		return nil, err
	}
	// is_active has a DB default of true, so an explicit false needs its own write.
	if input.IsActive != nil && !*input.IsActive {
		if err := s.items.Update(item.ID, map[string]interface{}{"is_active": false}); err != nil {
			return nil, err
		}
		item.IsActive = false
	}
	s.invalidate()
	log.Printf("[LaundryItemService] created item ID=%d title=%q", item.ID, item.Title)
	return item, nil
}

// ListActive serves the student-facing catalog, from cache when possible.
func (s *LaundryItemService) ListActive(ctx context.Context) ([]entity.LaundryItem, error) {
	if s.cache != nil {
		var cached []entity.LaundryItem
		err := s.cache.GetJSON(activeItemsCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[LaundryItemService] cache read failed: %v", err)
		}
	}

	items, err := s.items.ListActive()
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []entity.LaundryItem{}
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(activeItemsCacheKey, items, activeItemsCacheTTL); err != nil {
			log.Printf("[LaundryItemService] cache write failed: %v", err)
		}
	}
	return items, nil
}

func (s *LaundryItemService) ListAll(ctx context.Context) ([]entity.LaundryItem, error) {
	items, err := s.items.ListAll()
	if items == nil && err == nil {
		items = []entity.LaundryItem{}
	}
	return items, err
}

func (s *LaundryItemService) Get(ctx context.Context, id uint) (*entity.LaundryItem, error) {
	return s.items.GetByID(id)
}

func (s *LaundryItemService) Update(ctx context.Context, id uint, input UpdateItemInput) (*entity.LaundryItem, error) {
	current, err := s.items.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	title, description := current.Title, current.Description
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		updates["title"] = title
	}
	if input.Description != nil {
		description = strings.TrimSpace(*input.Description)
		updates["description"] = description
	}
	if err := validateItemText(title, description); err != nil {
		return nil, err
	}
	if input.PricePerUnit != nil {
		price, err := parsePrice(*input.PricePerUnit)
		if err != nil {
			return nil, err
		}
		updates["price_per_unit"] = price
	}
	if input.MaxQuantityPerOrder != nil {
		if *input.MaxQuantityPerOrder < 1 {
			return nil, fmt.Errorf("%w: max quantity must be at least 1", apperrors.ErrValidation)
		}
		updates["max_quantity_per_order"] = *input.MaxQuantityPerOrder
	}
	if input.Category != nil {
		category := entity.ItemCategory(strings.ToLower(strings.TrimSpace(*input.Category)))
		if !entity.ValidCategory(category) {
			return nil, fmt.Errorf("%w: unknown category %q", apperrors.ErrValidation, category)
		}
		updates["category"] = category
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields provided to update", apperrors.ErrValidation)
	}

	if err := s.items.Update(id, updates); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: an item with this title already exists", apperrors.ErrConflict)
		}
		return nil, err
	}
	s.invalidate()
	return s.items.GetByID(id)
}

func (s *LaundryItemService) UpdateImage(ctx context.Context, id uint, file Upload) (*entity.LaundryItem, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", apperrors.ErrUpstream)
	}
	item, err := s.items.GetByID(id)
	if err != nil {
		return nil, err
	}
	key, url, err := s.blobs.Put(ctx, "items", file)
	if err != nil {
		return nil, uploadError("image", err)
	}
	if err := s.items.Update(id, map[string]interface{}{"image_url": url, "image_key": key}); err != nil {
		s.dropBlob(ctx, key)
		return nil, err
	}
	s.dropBlob(ctx, item.ImageKey)
	s.invalidate()
	item.ImageURL, item.ImageKey = url, key
	return item, nil
}

func (s *LaundryItemService) Delete(ctx context.Context, id uint) error {
	item, err := s.items.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.items.Delete(id); err != nil {
		return err
	}
	s.dropBlob(ctx, item.ImageKey)
	s.invalidate()
	return nil
}

func (s *LaundryItemService) invalidate() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(activeItemsCacheKey); err != nil {
		log.Printf("[LaundryItemService] cache invalidation failed: %v", err)
	}
}

func (s *LaundryItemService) dropBlob(ctx context.Context, key string) {
	if key == "" || s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		log.Printf("[LaundryItemService] could not delete blob %s: %v", key, err)
	}
}

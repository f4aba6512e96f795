package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
	redisRepo "github.com/ulaundry/laundry-api/internal/repository/redis"
)

func newItemService(t *testing.T) (*LaundryItemService, *MockLaundryItemRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache, err := redisRepo.NewCacheRepo(client, "test:")
	require.NoError(t, err)

	items := new(MockLaundryItemRepository)
	svc, err := NewLaundryItemService(items, cache, nil)
	require.NoError(t, err)
	return svc, items, mr
}

func TestLaundryItemService_ListActive_UsesCache(t *testing.T) {
	svc, items, mr := newItemService(t)
	catalog := []entity.LaundryItem{
		{ID: 1, Title: "Shirt", PricePerUnit: decimal.RequireFromString("12.50"), IsActive: true},
	}
	items.On("ListActive").Return(catalog, nil).Once()

	first, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	second, err := svc.ListActive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first[0].Title, second[0].Title)
	assert.True(t, decimal.RequireFromString("12.5").Equal(second[0].PricePerUnit))
	assert.True(t, mr.Exists("test:"+activeItemsCacheKey))
	items.AssertNumberOfCalls(t, "ListActive", 1)
}

func TestLaundryItemService_WritesInvalidateCache(t *testing.T) {
	svc, items, mr := newItemService(t)
	items.On("ListActive").Return([]entity.LaundryItem{}, nil)
	_, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.True(t, mr.Exists("test:"+activeItemsCacheKey))

	items.On("Create", mock.AnythingOfType("*entity.LaundryItem")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.LaundryItem).ID = 5
	}).Return(nil)

	item, err := svc.Create(context.Background(), CreateItemInput{Title: " Jeans ", PricePerUnit: "20.005"})

	require.NoError(t, err)
	assert.Equal(t, "Jeans", item.Title)
	assert.Equal(t, entity.CategoryClothes, item.Category)
	assert.Equal(t, entity.DefaultMaxQuantityPerOrder, item.MaxQuantityPerOrder)
	assert.Equal(t, "20.01", item.PricePerUnit.StringFixed(2))
	assert.False(t, mr.Exists("test:"+activeItemsCacheKey))
}

func TestLaundryItemService_Create_InactiveNeedsSecondWrite(t *testing.T) {
	svc, items, _ := newItemService(t)
	inactive := false
	items.On("Create", mock.AnythingOfType("*entity.LaundryItem")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.LaundryItem).ID = 3
	}).Return(nil)
	items.On("Update", uint(3), map[string]interface{}{"is_active": false}).Return(nil)

	item, err := svc.Create(context.Background(), CreateItemInput{Title: "Quilt", PricePerUnit: "50", IsActive: &inactive})

	require.NoError(t, err)
	assert.False(t, item.IsActive)
	items.AssertExpectations(t)
}

func TestLaundryItemService_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateItemInput
	}{
		{"missing title", CreateItemInput{PricePerUnit: "10"}},
		{"missing price", CreateItemInput{Title: "Shirt"}},
		{"price not a number", CreateItemInput{Title: "Shirt", PricePerUnit: "ten"}},
		{"negative price", CreateItemInput{Title: "Shirt", PricePerUnit: "-1"}},
		{"bad category", CreateItemInput{Title: "Shirt", PricePerUnit: "1", Category: "shoes"}},
		{"negative quantity", CreateItemInput{Title: "Shirt", PricePerUnit: "1", MaxQuantityPerOrder: -2}},
		{"title too long", CreateItemInput{Title: strings.Repeat("x", 101), PricePerUnit: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, items, _ := newItemService(t)

			_, err := svc.Create(context.Background(), tt.input)

			assert.ErrorIs(t, err, apperrors.ErrValidation)
			items.AssertNotCalled(t, "Create", mock.Anything)
		})
	}
}

func TestLaundryItemService_Create_DuplicateTitle(t *testing.T) {
	svc, items, _ := newItemService(t)
	items.On("Create", mock.Anything).Return(fmt.Errorf("%w: duplicate", apperrors.ErrConflict))

	_, err := svc.Create(context.Background(), CreateItemInput{Title: "Shirt", PricePerUnit: "1"})

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "title already exists")
}

func TestLaundryItemService_Update(t *testing.T) {
	svc, items, _ := newItemService(t)
	current := &entity.LaundryItem{ID: 2, Title: "Shirt", PricePerUnit: decimal.NewFromInt(10)}
	items.On("GetByID", uint(2)).Return(current, nil)

	price := "15.5"
	category := "Bedding"
	items.On("Update", uint(2), mock.MatchedBy(func(updates map[string]interface{}) bool {
		price, ok := updates["price_per_unit"].(decimal.Decimal)
		return len(updates) == 2 && ok && price.Equal(decimal.RequireFromString("15.5")) &&
			updates["category"] == entity.CategoryBedding
	})).Return(nil)

	_, err := svc.Update(context.Background(), 2, UpdateItemInput{PricePerUnit: &price, Category: &category})
	require.NoError(t, err)
	items.AssertExpectations(t)

	_, err = svc.Update(context.Background(), 2, UpdateItemInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "an empty patch is rejected")
}

func TestLaundryItemService_UpdateImage_ReplacesBlob(t *testing.T) {
	items := new(MockLaundryItemRepository)
	blobs := new(MockBlobStore)
	svc, err := NewLaundryItemService(items, nil, blobs)
	require.NoError(t, err)

	upload := Upload{Filename: "shirt.webp", ContentType: "image/webp", Body: strings.NewReader("x")}
	items.On("GetByID", uint(4)).Return(&entity.LaundryItem{ID: 4, ImageKey: "items/old.webp"}, nil)
	blobs.On("Put", mock.Anything, "items", upload).Return("items/new.webp", "https://cdn.test/items/new.webp", nil)
	items.On("Update", uint(4), map[string]interface{}{"image_url": "https://cdn.test/items/new.webp", "image_key": "items/new.webp"}).Return(nil)
	blobs.On("Delete", mock.Anything, "items/old.webp").Return(nil)

	item, err := svc.UpdateImage(context.Background(), 4, upload)

	require.NoError(t, err)
	assert.Equal(t, "items/new.webp", item.ImageKey)
	blobs.AssertExpectations(t)
}

func TestLaundryItemService_UpdateImage_RejectedFileIsClientError(t *testing.T) {
	items := new(MockLaundryItemRepository)
	blobs := new(MockBlobStore)
	svc, err := NewLaundryItemService(items, nil, blobs)
	require.NoError(t, err)

	items.On("GetByID", uint(4)).Return(&entity.LaundryItem{ID: 4}, nil)
	blobs.On("Put", mock.Anything, "items", mock.Anything).Return("", "", fmt.Errorf("%w: unsupported file", apperrors.ErrValidation))

	_, err = svc.UpdateImage(context.Background(), 4, Upload{Filename: "a.exe"})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NotErrorIs(t, err, apperrors.ErrUpstream)
}

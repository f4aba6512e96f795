package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

func TestLaundryItemRepo_CRUD(t *testing.T) {
	repo := NewLaundryItemRepo(newTestDB(t))

	shirt := &entity.LaundryItem{
		Title: "Shirt", PricePerUnit: decimal.RequireFromString("12.50"),
		MaxQuantityPerOrder: 10, Category: entity.CategoryClothes, IsActive: true,
	}
	sheet := &entity.LaundryItem{
		Title: "Bedsheet", PricePerUnit: decimal.NewFromInt(30),
		MaxQuantityPerOrder: 2, Category: entity.CategoryBedding, IsActive: true,
	}
	require.NoError(t, repo.Create(shirt))
	require.NoError(t, repo.Create(sheet))

	dup := &entity.LaundryItem{Title: "Shirt", PricePerUnit: decimal.NewFromInt(1), MaxQuantityPerOrder: 1, Category: entity.CategoryClothes}
	assert.ErrorIs(t, repo.Create(dup), apperrors.ErrConflict)

	require.NoError(t, repo.Update(sheet.ID, map[string]interface{}{"is_active": false}))

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Shirt", active[0].Title)
	assert.True(t, decimal.RequireFromString("12.5").Equal(active[0].PricePerUnit))

	all, err := repo.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byIDs, err := repo.GetByIDs([]uint{shirt.ID, sheet.ID, 999})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)

	require.NoError(t, repo.Delete(shirt.ID))
	_, err = repo.GetByID(shirt.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(shirt.ID), apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.Update(999, map[string]interface{}{"title": "x"}), apperrors.ErrNotFound)
}

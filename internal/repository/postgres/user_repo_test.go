package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

func TestUserRepo_CreateAndLookup(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	user := seedUser(t, repo, "student0001", "a@b.com", 1001)

	assert.NotZero(t, user.ID)
	assert.Equal(t, entity.RoleStudent, user.Role)

	byEmail, err := repo.GetByEmail("a@b.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byName, err := repo.GetByUsername("student0001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = repo.GetByEmail("missing@b.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepo_Create_DuplicateIsConflict(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	seedUser(t, repo, "student0001", "a@b.com", 1001)

	dup := &entity.User{
		Username: "student0002", Email: "a@b.com", Password: "$2a$04$x", Name: "Other",
		StudentID: 1002, HostelName: "BOSE", RoomNumber: "1",
	}
	err := repo.Create(dup)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUserRepo_FindConflict(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	seedUser(t, repo, "student0001", "a@b.com", 1001)

	found, err := repo.FindConflict("other", "other@b.com", 1001)
	require.NoError(t, err)
	assert.Equal(t, "student0001", found.Username)

	_, err = repo.FindConflict("other", "other@b.com", 9999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepo_SetRefreshToken_RotateAndRevoke(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	user := seedUser(t, repo, "student0001", "a@b.com", 1001)

	first, second := "token-1", "token-2"
	require.NoError(t, repo.SetRefreshToken(user.ID, &first))
	require.NoError(t, repo.SetRefreshToken(user.ID, &second))

	stored, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasRefreshToken(second))
	assert.False(t, stored.HasRefreshToken(first), "rotation replaces the previous token")

	require.NoError(t, repo.SetRefreshToken(user.ID, nil))
	stored, err = repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)

	assert.ErrorIs(t, repo.SetRefreshToken(9999, &first), apperrors.ErrNotFound)
}

func TestUserRepo_ResetToken(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	user := seedUser(t, repo, "student0001", "a@b.com", 1001)

	hash := "abc123"
	expiry := time.Now().Add(15 * time.Minute)
	require.NoError(t, repo.SetResetToken(user.ID, &hash, &expiry))

	found, err := repo.GetByResetTokenHash(hash, time.Now())
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.GetByResetTokenHash(hash, expiry.Add(time.Second))
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "expired token must not match")

	require.NoError(t, repo.SetResetToken(user.ID, nil, nil))
	_, err = repo.GetByResetTokenHash(hash, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepo_UpdatePassword(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	user := seedUser(t, repo, "student0001", "a@b.com", 1001)

	require.NoError(t, repo.UpdatePassword(user.ID, "New@Pass123"))

	stored, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.True(t, stored.CheckPassword("New@Pass123"))
}

func TestUserRepo_UpdateProfile_IgnoresPassword(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	user := seedUser(t, repo, "student0001", "a@b.com", 1001)

	err := repo.UpdateProfile(user.ID, map[string]interface{}{"name": "Renamed", "password": "plain"})
	require.NoError(t, err)

	stored, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.Equal(t, user.Password, stored.Password)
}

func TestUserRepo_Delete_Cascades(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepo(db)
	orders := NewOrderRepo(db)
	codes := NewOneTimeCodeRepo(db)

	user := seedUser(t, users, "student0001", "a@b.com", 1001)
	require.NoError(t, orders.Create(&entity.Order{
		UserID: user.ID, Date: time.Now(), Currency: "INR", Status: entity.StatusPaymentLeft,
		Items: []entity.OrderItem{{LaundryItemID: 1, Title: "Shirt", Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
	}))
	require.NoError(t, codes.Replace(&entity.OneTimeCode{
		Email: user.Email, Purpose: entity.OTPPurposeLogin, CodeHash: "x", ExpiresAt: time.Now().Add(time.Minute),
	}))

	require.NoError(t, users.Delete(user.ID))

	_, err := users.GetByID(user.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	remaining, err := orders.ListByUser(user.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	_, err = codes.GetLatestActive(user.Email, entity.OTPPurposeLogin, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	var itemCount int64
	require.NoError(t, db.Model(&entity.OrderItem{}).Count(&itemCount).Error)
	assert.Zero(t, itemCount)

	assert.ErrorIs(t, users.Delete(user.ID), apperrors.ErrNotFound)
}

func TestUserRepo_List(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	seedUser(t, repo, "student0001", "a@b.com", 1001)
	seedUser(t, repo, "student0002", "c@d.com", 1002)
	seedUser(t, repo, "student0003", "e@f.com", 1003)

	page, total, err := repo.List(2, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "student0002", page[0].Username)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

func TestUserService_ListUsers_ClampsPaging(t *testing.T) {
	users := new(MockUserRepository)
	svc := NewUserService(users, nil)
	users.On("List", 100, 0).Return([]entity.User{{ID: 1}}, int64(1), nil)
	users.On("List", 20, 20).Return([]entity.User{}, int64(1), nil)

	page, err := svc.ListUsers(context.Background(), 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PerPage)
	assert.Len(t, page.Users, 1)

	page, err = svc.ListUsers(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, page.PerPage)
	assert.Equal(t, int64(1), page.Total)
}

func TestUserService_DeleteUser(t *testing.T) {
	users := new(MockUserRepository)
	blobs := new(MockBlobStore)
	svc := NewUserService(users, blobs)
	users.On("GetByID", uint(5)).Return(&entity.User{ID: 5, AvatarKey: "avatars/5.png"}, nil)
	users.On("Delete", uint(5)).Return(nil)
	blobs.On("Delete", mock.Anything, "avatars/5.png").Return(nil)

	assert.ErrorIs(t, svc.DeleteUser(context.Background(), 1, 1), apperrors.ErrValidation, "admins cannot delete themselves")
	require.NoError(t, svc.DeleteUser(context.Background(), 1, 5))
	blobs.AssertExpectations(t)
}

package service

import (
	"context"
	"fmt"
	"log"

	"github.com/ulaundry/laundry-api/internal/domain/repository"
	"github.com/ulaundry/laundry-api/internal/handler/dto"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
)

// UserService holds the admin user-management operations.
type UserService struct {
	userRepo repository.UserRepository
	blobs    BlobStore
}

func NewUserService(userRepo repository.UserRepository, blobs BlobStore) *UserService {
	return &UserService{userRepo: userRepo, blobs: blobs}
}

// ListUsers returns one page of users ordered by id.
func (s *UserService) ListUsers(ctx context.Context, page, pageSize int) (*dto.PaginatedUsersResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	users, total, err := s.userRepo.List(pageSize, offset)
	if err != nil {
		log.Printf("[UserService] list users failed: %v", err)
		return nil, err
	}
	return &dto.PaginatedUsersResponse{
		Users:   users,
		Total:   total,
		Page:    page,
		PerPage: pageSize,
	}, nil
}

// DeleteUser removes a user with their orders and codes. Admins cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID uint) error {
	if actorID == userID {
		return fmt.Errorf("%w: you cannot delete your own account", apperrors.ErrValidation)
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(userID); err != nil {
		return err
	}
	if user.AvatarKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, user.AvatarKey); err != nil {
			log.Printf("[UserService] could not delete avatar %s: %v", user.AvatarKey, err)
		}
	}
	log.Printf("[UserService] user ID=%d deleted by admin ID=%d", userID, actorID)
	return nil
}

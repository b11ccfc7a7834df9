package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sidang-api/internal/models"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// UserService serves the lecturer directory and the caller's own profile.
type UserService struct {
	users  userDirectory
	logger *zap.Logger
}

// NewUserService instantiates UserService.
func NewUserService(users userDirectory, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

// Lecturers lists active lecturers for the scheduling UI's examiner picker.
func (s *UserService) Lecturers(ctx context.Context, search string, page, pageSize int) ([]models.User, *models.Pagination, error) {
	role := models.RoleLecturer
	active := true
	filter := models.UserFilter{
		Role:     &role,
		Active:   &active,
		Search:   search,
		Page:     page,
		PageSize: pageSize,
	}
	lecturers, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lecturers")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return lecturers, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Profile returns the authenticated user's own record.
func (s *UserService) Profile(ctx context.Context, principal models.Principal) (*models.User, error) {
	user, err := s.users.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

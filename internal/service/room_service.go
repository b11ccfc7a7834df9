package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sidang-api/internal/models"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

const roomDirectoryCacheKey = "rooms:directory"

type roomStore interface {
	List(ctx context.Context) ([]models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
}

// RoomRequest is the admin payload for creating or updating a room.
type RoomRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// RoomService manages the defense-room directory. The full listing is cached
// in Redis because it changes rarely and every availability check reads it.
type RoomService struct {
	rooms     roomStore
	cache     *redis.Client
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService instantiates RoomService. cache may be nil, in which case
// every read hits the database.
func NewRoomService(rooms roomStore, cache *redis.Client, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{
		rooms:     rooms,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns the room directory, served from cache when possible.
func (s *RoomService) List(ctx context.Context) ([]models.Room, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, roomDirectoryCacheKey).Bytes()
		if err == nil {
			var rooms []models.Room
			if unmarshalErr := json.Unmarshal(cached, &rooms); unmarshalErr == nil {
				s.metrics.RecordCacheOperation(true)
				return rooms, nil
			}
		}
		s.metrics.RecordCacheOperation(false)
	}

	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(rooms); marshalErr == nil {
			if setErr := s.cache.Set(ctx, roomDirectoryCacheKey, payload, s.cacheTTL).Err(); setErr != nil {
				s.logger.Warn("failed to cache room directory", zap.Error(setErr))
			}
		}
	}
	return rooms, nil
}

// Get loads one room.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create adds a room. Admin only.
func (s *RoomService) Create(ctx context.Context, principal models.Principal, req RoomRequest) (*models.Room, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room := &models.Room{Name: req.Name, Description: req.Description}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	s.invalidateDirectory(ctx)
	return room, nil
}

// Update modifies a room. Admin only.
func (s *RoomService) Update(ctx context.Context, principal models.Principal, id string, req RoomRequest) (*models.Room, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Name = req.Name
	room.Description = req.Description
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	s.invalidateDirectory(ctx)
	return room, nil
}

// Delete removes a room. Admin only.
func (s *RoomService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.ErrForbidden
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.rooms.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	s.invalidateDirectory(ctx)
	return nil
}

func (s *RoomService) invalidateDirectory(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, roomDirectoryCacheKey).Err(); err != nil {
		s.logger.Warn("failed to invalidate room directory cache", zap.Error(err))
	}
}

package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/auth"
	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/search"
)

// UserService manages accounts beyond signup and login.
type UserService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserService creates a user service.
func NewUserService(db *gorm.DB, logger *zap.Logger) *UserService {
	return &UserService{db: db, logger: logger}
}

// UpdateUserInput modifies only the fields that are set. Role and active
// flag changes are reserved to admins.
type UpdateUserInput struct {
	Email    *string
	Name     *string
	Password *string
	RoleID   *int64
	IsActive *bool
}

// Get returns one account with its role loaded. Callers may read their own
// account; admins may read any.
func (s *UserService) Get(ctx context.Context, actor *models.User, id int64) (*models.User, error) {
	if actor.ID != id && !actor.HasRole(models.RoleAdmin) {
		return nil, apperrors.Forbidden("Permission denied")
	}
	return s.load(ctx, id)
}

// List pages accounts newest first. Admin only.
func (s *UserService) List(ctx context.Context, actor *models.User, limit int, cursor string) ([]models.User, string, error) {
	if !actor.HasRole(models.RoleAdmin) {
		return nil, "", apperrors.Forbidden("Permission denied")
	}

	q := s.db.WithContext(ctx).Preload("Role")
	q, err := cursorScope(q, cursor)
	if err != nil {
		return nil, "", err
	}

	var users []models.User
	if err := q.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&users).Error; err != nil {
		return nil, "", fmt.Errorf("failed to list users: %w", err)
	}

	next := ""
	if len(users) > limit {
		users = users[:limit]
		last := users[limit-1]
		next = search.EncodeCompoundCursor(last.CreatedAt, last.ID)
	}
	return users, next, nil
}

// Update changes the set fields of an account. Users may edit themselves;
// admins may edit anyone. A changed email must stay unique and a new
// password is stored hashed.
func (s *UserService) Update(ctx context.Context, actor *models.User, id int64, input UpdateUserInput) (*models.User, error) {
	isAdmin := actor.HasRole(models.RoleAdmin)
	if actor.ID != id && !isAdmin {
		return nil, apperrors.Forbidden("Permission denied")
	}
	if (input.RoleID != nil || input.IsActive != nil) && !isAdmin {
		return nil, apperrors.Forbidden("Permission denied")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Email != nil && *input.Email != user.Email {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ? AND id <> ?", *input.Email, id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return nil, apperrors.BadRequest("Email already registered")
		}
		updates["email"] = *input.Email
	}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		updates["hashed_password"] = hash
	}
	if input.RoleID != nil {
		var role models.Role
		if err := s.db.WithContext(ctx).First(&role, *input.RoleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.BadRequest("Invalid role")
			}
			return nil, fmt.Errorf("failed to load role: %w", err)
		}
		updates["role_id"] = role.ID
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}
	return s.load(ctx, id)
}

// Deactivate turns an account off without deleting its history. Admin only.
func (s *UserService) Deactivate(ctx context.Context, actor *models.User, id int64) (*models.User, error) {
	if !actor.HasRole(models.RoleAdmin) {
		return nil, apperrors.Forbidden("Permission denied")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
		return nil, fmt.Errorf("failed to deactivate user: %w", err)
	}
	user.IsActive = false

	s.logger.Info("user deactivated", zap.Int64("user_id", id), zap.Int64("actor_id", actor.ID))
	return user, nil
}

// Delete removes an account and, through FK cascade, its loans and reviews.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if !actor.HasRole(models.RoleAdmin) {
		return apperrors.Forbidden("Only Admin can delete users")
	}

	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("User")
	}

	s.logger.Info("user deleted", zap.Int64("user_id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

func (s *UserService) load(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Role").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

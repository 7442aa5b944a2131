package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/auth"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/services"
)

// UserHandler serves account administration.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// List pages accounts. Admin only.
func (h *UserHandler) List(c echo.Context) error {
	limit, err := pageLimit(c, defaultPageSize, maxPageSize)
	if err != nil {
		return err
	}
	users, next, err := h.users.List(c.Request().Context(), auth.CurrentUser(c), limit, c.QueryParam("cursor"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCursorPage(users, next))
}

// Get returns one account: the caller's own, or any for admins.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), auth.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUserRequest modifies only the fields present in the payload. Role
// and active-flag changes are admin-only, enforced by the service.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
	RoleID   *int64  `json:"role_id"`
	IsActive *bool   `json:"is_active"`
}

// Update edits an account.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return apperrors.BadRequest("Name cannot be empty or whitespace only")
		}
		req.Name = &trimmed
	}
	if req.Password != nil {
		if err := auth.ValidatePassword(*req.Password); err != nil {
			return err
		}
	}

	user, err := h.users.Update(c.Request().Context(), auth.CurrentUser(c), id, services.UpdateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		RoleID:   req.RoleID,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete removes an account and its history. Admin only.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.Request().Context(), auth.CurrentUser(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/auth"
	"github.com/bookhive/bookhive/src/internal/database/models"
	"github.com/bookhive/bookhive/src/internal/email"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/metrics"
)

// AuthHandler serves registration, login and the token lifecycle.
type AuthHandler struct {
	auth    *auth.AuthService
	notices *email.NoticeService
	metrics *metrics.Metrics
}

// NewAuthHandler creates an auth handler. notices and m may be nil; welcome
// mail and auth counters are then skipped.
func NewAuthHandler(authService *auth.AuthService, notices *email.NoticeService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{auth: authService, notices: notices, metrics: m}
}

// RegisterRequest is the self-signup payload. Accounts created here are
// always Members; roles change through the admin surface.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterResponse returns the new account with a ready-to-use token pair.
type RegisterResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
}

// Register creates a Member account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apperrors.BadRequest("Name cannot be empty or whitespace only")
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.auth.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		h.countAuth("register", false)
		if errors.Is(err, auth.ErrEmailTaken) {
			return apperrors.BadRequest("Email already registered")
		}
		return apperrors.Internal("An internal error occurred during registration", err)
	}

	pair, err := h.auth.GenerateTokenPair(user)
	if err != nil {
		return apperrors.Internal("An internal error occurred during registration", err)
	}

	if h.notices != nil {
		if err := h.notices.QueueWelcome(ctx, user); err != nil {
			c.Logger().Warnf("failed to queue welcome mail: %v", err)
		}
	}
	h.countAuth("register", true)

	return c.JSON(http.StatusCreated, RegisterResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

// LoginRequest carries credentials plus the TOTP code for accounts that
// enabled it.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	pair, err := h.auth.Login(c.Request().Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		h.countAuth("login", false)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return apperrors.Unauthorized("Invalid credentials")
		case errors.Is(err, auth.ErrAccountInactive):
			return apperrors.Unauthorized("Account is inactive")
		case errors.Is(err, auth.ErrTOTPRequired):
			return apperrors.Unauthorized("TOTP code required")
		case errors.Is(err, auth.ErrTOTPInvalid):
			return apperrors.Unauthorized("Invalid TOTP code")
		}
		return apperrors.Internal("Login failed", err)
	}

	h.countAuth("login", true)
	return c.JSON(http.StatusOK, pair)
}

// RefreshRequest carries the refresh token being exchanged.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh exchanges a refresh token for a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	pair, err := h.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		h.countAuth("refresh", false)
		return apperrors.Unauthorized("Invalid token")
	}
	h.countAuth("refresh", true)
	return c.JSON(http.StatusOK, pair)
}

// Logout revokes the caller's access token for its remaining lifetime.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims := auth.CurrentClaims(c)
	if claims == nil {
		return apperrors.Unauthorized("Not authenticated")
	}
	if err := h.auth.Logout(c.Request().Context(), claims); err != nil {
		return apperrors.Internal("Logout failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, auth.CurrentUser(c))
}

// TOTPSetup issues a fresh TOTP secret and provisioning URL for the caller.
func (h *AuthHandler) TOTPSetup(c echo.Context) error {
	setup, err := h.auth.SetupTOTP(c.Request().Context(), auth.CurrentUser(c))
	if err != nil {
		return apperrors.Internal("Failed to set up TOTP", err)
	}
	return c.JSON(http.StatusOK, setup)
}

// TOTPVerifyRequest carries the enrolment code from the authenticator app.
type TOTPVerifyRequest struct {
	Code string `json:"code" validate:"required"`
}

// TOTPVerify checks the enrolment code and switches two-factor auth on.
func (h *AuthHandler) TOTPVerify(c echo.Context) error {
	var req TOTPVerifyRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.auth.VerifyTOTP(c.Request().Context(), auth.CurrentUser(c), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTOTPNotConfigured):
			return apperrors.BadRequest("TOTP is not configured. Call setup first")
		case errors.Is(err, auth.ErrTOTPInvalid):
			return apperrors.BadRequest("Invalid TOTP code")
		}
		return apperrors.Internal("Failed to verify TOTP", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"totp_enabled": true})
}

func (h *AuthHandler) countAuth(event string, success bool) {
	if h.metrics != nil {
		h.metrics.AuthMetrics(event, success)
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/cache"
	"github.com/bookhive/bookhive/src/internal/database/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTOTPRequired       = errors.New("totp code required")
	ErrTOTPInvalid        = errors.New("invalid totp code")
	ErrTOTPNotConfigured  = errors.New("totp is not configured")
)

// Token kinds carried in claims so an access token cannot stand in for a
// refresh token or vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are shared by both token kinds; TokenType tells them apart.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is the login/refresh response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AuthService owns account registration, credential checks and the JWT
// lifecycle. Access and refresh tokens are signed with separate secrets.
type AuthService struct {
	db            *gorm.DB
	revoked       *cache.TokenStore
	totp          *TOTPService
	logger        *zap.Logger
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// NewAuthService creates an authentication service from configuration.
func NewAuthService(db *gorm.DB, cfg *viper.Viper, revoked *cache.TokenStore, logger *zap.Logger) *AuthService {
	return &AuthService{
		db:            db,
		revoked:       revoked,
		totp:          NewTOTPService("BookHive"),
		logger:        logger,
		accessSecret:  []byte(cfg.GetString("auth.jwt_secret")),
		refreshSecret: []byte(cfg.GetString("auth.jwt_refresh_secret")),
		accessTTL:     time.Duration(cfg.GetInt("auth.access_token_minutes")) * time.Minute,
		refreshTTL:    time.Duration(cfg.GetInt("auth.refresh_token_days")) * 24 * time.Hour,
		issuer:        "bookhive",
	}
}

// HashPassword hashes a plain text password. bcrypt reads at most 72 bytes,
// so longer inputs are truncated before hashing and verification alike.
func HashPassword(password string) (string, error) {
	raw := []byte(password)
	if len(raw) > 72 {
		raw = raw[:72]
	}
	hash, err := bcrypt.GenerateFromPassword(raw, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPasswordHash compares a password with its hash.
func CheckPasswordHash(password, hash string) bool {
	raw := []byte(password)
	if len(raw) > 72 {
		raw = raw[:72]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), raw) == nil
}

// Register creates a Member account. Staff accounts are created through the
// admin surface, never through self-registration.
func (a *AuthService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	var count int64
	if err := a.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	var role models.Role
	if err := a.db.WithContext(ctx).Where("name = ?", models.RoleMember).First(&role).Error; err != nil {
		return nil, fmt.Errorf("member role is not seeded: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:          email,
		Name:           name,
		HashedPassword: hash,
		RoleID:         role.ID,
		IsActive:       true,
	}
	if err := a.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.Role = &role

	a.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email))
	return user, nil
}

// Login verifies credentials and, for TOTP-enabled accounts, the second
// factor, then issues a token pair.
func (a *AuthService) Login(ctx context.Context, email, password, totpCode string) (*TokenPair, error) {
	var user models.User
	err := a.db.WithContext(ctx).Preload("Role").Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !CheckPasswordHash(password, user.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	if user.TOTPEnabled {
		if totpCode == "" {
			return nil, ErrTOTPRequired
		}
		if !a.totp.ValidateTOTP(user.TOTPSecret, totpCode) {
			return nil, ErrTOTPInvalid
		}
	}

	return a.GenerateTokenPair(&user)
}

// Refresh exchanges a valid refresh token for a new pair. The account must
// still exist and be active.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := a.parseToken(refreshToken, a.refreshSecret, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := a.UserByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidToken
	}
	return a.GenerateTokenPair(user)
}

// Logout revokes the caller's access token for its remaining lifetime.
func (a *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	return a.revoked.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

// GenerateTokenPair signs a fresh access/refresh pair for the user.
func (a *AuthService) GenerateTokenPair(user *models.User) (*TokenPair, error) {
	access, err := a.signToken(user, TokenTypeAccess, a.accessSecret, a.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := a.signToken(user, TokenTypeRefresh, a.refreshSecret, a.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// ValidateAccessToken verifies signature, expiry, token kind and the
// revocation list.
func (a *AuthService) ValidateAccessToken(ctx context.Context, raw string) (*Claims, error) {
	claims, err := a.parseToken(raw, a.accessSecret, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if a.revoked != nil && a.revoked.IsRevoked(ctx, claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// UserByID loads a user with their role preloaded.
func (a *AuthService) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := a.db.WithContext(ctx).Preload("Role").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetupTOTP issues a fresh secret for the account. The secret is stored
// immediately but 2FA stays off until VerifyTOTP confirms the authenticator.
func (a *AuthService) SetupTOTP(ctx context.Context, user *models.User) (*TOTPSetup, error) {
	setup, err := a.totp.GenerateTOTP(user.Email)
	if err != nil {
		return nil, err
	}

	err = a.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{"totp_secret": setup.Secret, "totp_enabled": false}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store totp secret: %w", err)
	}
	return setup, nil
}

// VerifyTOTP checks the enrolment code and switches 2FA on.
func (a *AuthService) VerifyTOTP(ctx context.Context, user *models.User, code string) error {
	if user.TOTPSecret == "" {
		return ErrTOTPNotConfigured
	}
	if !a.totp.ValidateTOTP(user.TOTPSecret, code) {
		return ErrTOTPInvalid
	}
	return a.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Update("totp_enabled", true).Error
}

func (a *AuthService) signToken(user *models.User, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (a *AuthService) parseToken(raw string, secret []byte, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

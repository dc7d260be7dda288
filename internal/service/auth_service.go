package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/proedge/enrollment-api/internal/models"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthConfig defines configuration for admin authentication.
type AuthConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AuthService authenticates admin users and issues access tokens.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config}
}

// Login authenticates a user and returns an issued token. Only admins hold
// console access; student accounts are provisioned for the LMS, not for this
// API.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if user.Status != models.UserStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if user.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "console access requires an admin account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	now := time.Now().UTC()
	claims := models.JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	s.logger.Info("admin logged in", zap.String("user_id", user.ID))
	return &models.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int64(s.config.Expiration.Seconds()),
		IssuedAt:    now,
		User: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
	}, nil
}

// ValidateToken parses and validates an access token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

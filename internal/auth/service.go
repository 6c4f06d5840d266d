package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/store"
)

// TokenPair is returned by registration and login
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Username string `json:"username" form:"username" binding:"required,max=150"`
	Password string `json:"password" form:"password" binding:"required"`
	Role     string `json:"role" form:"role" binding:"omitempty,max=64"`
}

// LoginRequest is the body of POST /token
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// RefreshRequest is the body of POST /token/refresh and POST /logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" binding:"required"`
}

// Registration is returned by Register
type Registration struct {
	User   *models.User `json:"user"`
	Tokens TokenPair    `json:"tokens"`
}

// Service issues tokens for users held in an identity store
type Service struct {
	identities store.IdentityStore
	jwt        *JWTManager
	bcryptCost int
	now        func() time.Time
}

// NewService creates the identity service
func NewService(identities store.IdentityStore, jwtManager *JWTManager) *Service {
	return &Service{
		identities: identities,
		jwt:        jwtManager,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// JWT returns the token manager backing the service
func (s *Service) JWT() *JWTManager {
	return s.jwt
}

// Register creates a user and logs it in
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperrors.Validation(err)
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	role := req.Role
	if role == "" {
		role = models.DefaultRole
	}

	now := s.now()
	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.identities.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.Conflict("A user with that username already exists").
				WithContext("username", req.Username)
		}
		return nil, apperrors.Internal(err)
	}

	tokens, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.Info("User registered", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return &Registration{User: user, Tokens: *tokens}, nil
}

// Login verifies credentials and issues a token pair
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	user, err := s.identities.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			return nil, invalidCredentials()
		}
		return nil, apperrors.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalidCredentials()
	}
	if !user.IsActive() {
		return nil, apperrors.Forbidden("User is disabled").WithContext("username", user.Username)
	}

	if err := s.identities.UpdateUserLastLogin(ctx, user.ID, s.now()); err != nil {
		logger.Warn("Failed to record last login", "user_id", user.ID, "error", err)
	}

	return s.issue(ctx, user)
}

// Refresh exchanges a live refresh token for a new access token
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("Refresh token is invalid or expired", err)
	}

	if _, err := s.identities.GetSessionByToken(ctx, refreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Unauthorized("Refresh token is invalid or expired", err)
		}
		return nil, apperrors.Internal(err)
	}

	user, err := s.identities.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Unauthorized("User no longer exists", err)
		}
		return nil, apperrors.Internal(err)
	}
	if !user.IsActive() {
		return nil, apperrors.Forbidden("User is disabled").WithContext("user_id", user.ID)
	}

	accessToken, expiresAt, err := s.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    expiresAt,
	}, nil
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.identities.DeleteSessionByToken(ctx, refreshToken); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// Profile returns the user behind an authenticated request
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.identities.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("User", userID)
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// PurgeExpiredSessions removes expired refresh sessions
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.identities.DeleteExpiredSessions(ctx)
}

func (s *Service) issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, expiresAt, err := s.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	refreshToken, refreshExpiresAt, err := s.jwt.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: refreshToken,
		ExpiresAt:    refreshExpiresAt,
		CreatedAt:    s.now(),
	}
	if err := s.identities.CreateSession(ctx, session); err != nil {
		return nil, apperrors.Internal(err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    expiresAt,
	}, nil
}

func invalidCredentials() *apperrors.AppError {
	return apperrors.Unauthorized("No active account found with the given credentials", nil)
}

// dummyHash is compared against when the username does not exist
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("folio-dummy-password"), bcrypt.DefaultCost)

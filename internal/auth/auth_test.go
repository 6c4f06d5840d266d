package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "folio/internal/errors"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/store"
)

const testSecret = "test-secret-key-0123456789"

func newTestService() (*Service, *store.MemoryIdentityStore) {
	identities := store.NewMemoryIdentityStore()
	svc := NewService(identities, NewJWTManager(testSecret, time.Minute, time.Hour, "folio-test"))
	svc.bcryptCost = bcrypt.MinCost
	return svc, identities
}

func TestJWTManagerRoundTrip(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute, time.Hour, "folio-test")

	token, expiresAt, err := m.GenerateToken("u1", "alice", "user")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	_, err = m.ValidateRefreshToken(token)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestJWTManagerRejects(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute, time.Hour, "folio-test")

	t.Run("expired", func(t *testing.T) {
		token, _, err := m.GenerateToken("u1", "alice", "user")
		require.NoError(t, err)

		later := NewJWTManager(testSecret, time.Minute, time.Hour, "folio-test")
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		_, err = later.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewJWTManager("another-secret-key-98765", time.Minute, time.Hour, "folio-test")
		token, _, err := other.GenerateToken("u1", "alice", "user")
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1", TokenType: TokenTypeAccess})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewJWTManager(testSecret, time.Minute, time.Hour, "folio-test")

	router := gin.New()
	router.Use(middleware.HandleError)
	router.GET("/protected", m.AuthMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.ContextUserID))
	})

	access, _, err := m.GenerateToken("u1", "alice", "user")
	require.NoError(t, err)
	refresh, _, err := m.GenerateRefreshToken("u1", "alice", "user")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + access, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"valid", "Bearer " + access, http.StatusOK},
		{"lowercase scheme", "bearer " + access, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestServiceRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{Username: "newuser", Password: "newpass", Role: "fund_admin"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.User.ID)
	assert.Equal(t, "fund_admin", reg.User.Role)
	assert.NotEmpty(t, reg.Tokens.AccessToken)

	_, err = svc.Register(ctx, RegisterRequest{Username: "newuser", Password: "other"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))

	defaulted, err := svc.Register(ctx, RegisterRequest{Username: "plain", Password: "plainpass"})
	require.NoError(t, err)
	assert.Equal(t, "user", defaulted.User.Role)

	tokens, err := svc.Login(ctx, LoginRequest{Username: "newuser", Password: "newpass"})
	require.NoError(t, err)
	claims, err := svc.JWT().ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	profile, err := svc.Profile(ctx, reg.User.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.LastLogin)

	_, err = svc.Login(ctx, LoginRequest{Username: "newuser", Password: "wrong"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))

	_, err = svc.Login(ctx, LoginRequest{Username: "ghost", Password: "whatever"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
}

func TestServiceRefreshAndLogout(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	_, err = svc.JWT().ValidateToken(refreshed.AccessToken)
	assert.NoError(t, err)

	_, err = svc.Refresh(ctx, tokens.AccessToken)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))

	require.NoError(t, svc.Logout(ctx, tokens.RefreshToken))
	require.NoError(t, svc.Logout(ctx, tokens.RefreshToken))

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
}

func TestServicePurgeExpiredSessions(t *testing.T) {
	svc, identities := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "bob", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, identities.CreateSession(ctx, &models.Session{
		ID:           "stale",
		UserID:       "someone",
		RefreshToken: "stale-token",
		ExpiresAt:    time.Now().Add(-time.Minute),
		CreatedAt:    time.Now().Add(-time.Hour),
	}))

	removed, err := svc.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = identities.GetSessionByToken(ctx, "stale-token")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceRejectsDisabledUser(t *testing.T) {
	svc, identities := newTestService()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, identities.CreateUser(ctx, &models.User{
		Username:     "carol",
		PasswordHash: string(hash),
		Role:         models.DefaultRole,
		Status:       models.UserStatusDisabled,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}))

	_, err = svc.Login(ctx, LoginRequest{Username: "carol", Password: "secret"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	// a wrong password never reveals the account state
	_, err = svc.Login(ctx, LoginRequest{Username: "carol", Password: "wrong"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
}

func TestServiceRejectsOverlongPassword(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "dave",
		Password: strings.Repeat("p", 73),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}

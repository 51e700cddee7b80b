package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-portfolio-tracker/internal/config"
	"crypto-portfolio-tracker/internal/database/dbtest"
	"crypto-portfolio-tracker/internal/errs"
	"crypto-portfolio-tracker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) *Service {
	return NewService(dbtest.New(t), &config.Auth{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		AdminUsers: []string{"root"},
	}, zap.NewNop())
}

func TestService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	user, err := svc.Register(ctx, "alice", "Alice@Example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.False(t, user.IsAdmin)

	t.Run("Duplicate username", func(t *testing.T) {
		_, err := svc.Register(ctx, "alice", "other@example.com", "password123")
		assert.ErrorIs(t, err, errs.ErrAlreadyExists)
	})

	t.Run("Short password", func(t *testing.T) {
		_, err := svc.Register(ctx, "bob", "bob@example.com", "short")
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("Configured admin", func(t *testing.T) {
		root, err := svc.Register(ctx, "root", "root@example.com", "password123")
		require.NoError(t, err)
		assert.True(t, root.IsAdmin)
	})

	t.Run("Login issues a token carrying the user", func(t *testing.T) {
		token, got, err := svc.Login(ctx, "alice", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		claims, err := svc.ParseToken(token)
		require.NoError(t, err)
		id, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)
		assert.Equal(t, "alice", claims.Username)
	})

	t.Run("Wrong password and unknown user look the same", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice", "wrong password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = svc.Login(ctx, "nobody", "whatever1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Expired token", func(t *testing.T) {
		token, _, err := svc.Login(ctx, "alice", "correct horse")
		require.NoError(t, err)

		later := NewService(svc.db, &svc.cfg, zap.NewNop())
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		_, err = later.ParseToken(token)
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("Rejected tokens match ErrUnauthorized", func(t *testing.T) {
		_, err := svc.ParseToken("not.a.token")
		assert.ErrorIs(t, err, errs.ErrUnauthorized)

		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Username: "alice"}).SignedString([]byte("other-secret"))
		require.NoError(t, err)
		_, err = svc.ParseToken(forged)
		assert.ErrorIs(t, err, errs.ErrUnauthorized)

		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}}
		_, err = claims.UserID()
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})
}

func TestService_CloseAccount(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	user, err := svc.Register(ctx, "carol", "carol@example.com", "password123")
	require.NoError(t, err)
	require.NoError(t, svc.db.Create(&models.Asset{UserID: user.ID, Name: "Bitcoin", Symbol: "BTC", Amount: 1}).Error)

	require.NoError(t, svc.CloseAccount(ctx, user.ID))

	active, err := svc.IsActive(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, active)

	var visible, total int64
	svc.db.Model(&models.Asset{}).Where("user_id = ?", user.ID).Count(&visible)
	svc.db.Unscoped().Model(&models.Asset{}).Where("user_id = ?", user.ID).Count(&total)
	assert.Zero(t, visible)
	assert.Equal(t, int64(1), total, "assets are soft-deleted")

	_, _, err = svc.Login(ctx, "carol", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, svc.CloseAccount(ctx, user.ID), errs.ErrNotFound)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "root", "root@example.com", "password123")
	require.NoError(t, err)
	userToken, _, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	adminToken, _, err := svc.Login(ctx, "root", "password123")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", Middleware(svc, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c)})
	})
	router.GET("/admin", Middleware(svc, zap.NewNop()), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(path, header string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("/me", "Bearer "+userToken))
	assert.Equal(t, http.StatusUnauthorized, do("/me", ""))
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Token "+userToken))
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Bearer not.a.token"))

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Bearer "+badSubject))
	assert.Equal(t, http.StatusForbidden, do("/admin", "Bearer "+userToken))
	assert.Equal(t, http.StatusNoContent, do("/admin", "Bearer "+adminToken))
}

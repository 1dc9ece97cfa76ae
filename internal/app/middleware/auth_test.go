package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mlbilling/internal/app/config"
	"mlbilling/internal/app/role"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(am *AuthMiddleware, roles ...role.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", am.WithAuthCheck(roles...), func(c *gin.Context) {
		id, userRole, ok := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": userRole.String(), "ok": ok})
	})
	return r
}

func call(r http.Handler, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func newMiddleware() *AuthMiddleware {
	cfg := &config.Config{JWT: config.JWTConfig{
		Token:         "test-secret",
		ExpiresIn:     time.Hour,
		SigningMethod: jwt.SigningMethodHS256,
	}}
	return NewAuthMiddleware(NewLocalBlacklist(), cfg)
}

func TestWithAuthCheck(t *testing.T) {
	am := newMiddleware()
	token, err := am.IssueToken(7, role.User, time.Now())
	require.NoError(t, err)

	w := call(newRouter(am), token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id": 7, "role": "user", "ok": true}`, w.Body.String())
}

func TestWithAuthCheckRejects(t *testing.T) {
	am := newMiddleware()

	other := newMiddleware()
	other.Config.JWT.Token = "another-secret"
	foreign, err := other.IssueToken(7, role.User, time.Now())
	require.NoError(t, err)

	expired, err := am.IssueToken(7, role.User, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing":      "",
		"garbage":      "not.a.token",
		"wrong secret": foreign,
		"expired":      expired,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, call(newRouter(am), token).Code)
		})
	}
}

func TestWithAuthCheckRole(t *testing.T) {
	am := newMiddleware()
	user, err := am.IssueToken(1, role.User, time.Now())
	require.NoError(t, err)
	admin, err := am.IssueToken(2, role.Admin, time.Now())
	require.NoError(t, err)

	r := newRouter(am, role.Admin)
	assert.Equal(t, http.StatusForbidden, call(r, user).Code)
	assert.Equal(t, http.StatusOK, call(r, admin).Code)
}

func TestRevokedToken(t *testing.T) {
	am := newMiddleware()
	token, err := am.IssueToken(1, role.User, time.Now())
	require.NoError(t, err)

	require.NoError(t, am.Blacklist.WriteJWTToBlacklist(context.Background(), token, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, call(newRouter(am), token).Code)
}

func TestLocalBlacklistExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewLocalBlacklist()
	b.now = func() time.Time { return now }

	require.NoError(t, b.WriteJWTToBlacklist(ctx, "t", time.Minute))
	revoked, err := b.IsJWTBlacklisted(ctx, "t")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = b.IsJWTBlacklisted(ctx, "t")
	require.NoError(t, err)
	assert.False(t, revoked)
}

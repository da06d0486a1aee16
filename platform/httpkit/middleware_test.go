package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vehicle_inspection_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type staticJWT string

func (s staticJWT) GetJWTAccessSecret() string { return string(s) }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthEngine(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/private", AuthRequired(staticJWT(secret)), func(c *gin.Context) {
		userID, _ := c.Get(ContextUserIDKey)
		c.String(http.StatusOK, userID.(uuid.UUID).String())
	})
	engine.PUT("/admin", AuthRequired(staticJWT(secret)), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	engine := newAuthEngine("secret")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	engine := newAuthEngine("secret")
	userID := uuid.New()
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":  userID.String(),
		"type": "access",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, userID.String(), rec.Body.String())
}

func TestAuthRequiredRejectsWrongSecret(t *testing.T) {
	engine := newAuthEngine("secret")
	token := signToken(t, "other", jwt.MapClaims{"sub": uuid.NewString(), "type": "access"})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	engine := newAuthEngine("secret")
	inspector := signToken(t, "secret", jwt.MapClaims{"sub": uuid.NewString(), "type": "access", "roles": []string{"inspector"}})
	admin := signToken(t, "secret", jwt.MapClaims{"sub": uuid.NewString(), "type": "access", "roles": []string{"admin"}})

	req := httptest.NewRequest(http.MethodPut, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+inspector)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{apperr.NotFound("missing"), http.StatusNotFound},
		{apperr.Precondition("not yet"), http.StatusConflict},
		{apperr.ProviderFailure("analysis failed", http.ErrHandlerTimeout), http.StatusBadGateway},
		{apperr.Validation("bad"), http.StatusBadRequest},
		{http.ErrAbortHandler, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		require.True(t, HandleError(c, tc.err))
		require.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(NewIPRateLimiter(0, 1, nil).RateLimit())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

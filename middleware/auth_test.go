package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func identityRouter(secret []byte) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(secret))
	r.GET("/me", func(c *gin.Context) {
		id, err := GetIdentity(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": id.UserID, "role": id.Role, "email": id.Email})
	})
	r.GET("/admin", RequireCapability(services.CapViewAnyOrder), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_GatewayHeaders(t *testing.T) {
	r := identityRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Email", "user1@example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"user-1","role":"customer","email":"user1@example.com"}`, w.Body.String())
}

func TestAuthMiddleware_IgnoresCookies(t *testing.T) {
	r := identityRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "user_id", Value: "user-2"})
	req.AddCookie(&http.Cookie{Name: "user_role", Value: "admin"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "user-2")
	req.AddCookie(&http.Cookie{Name: "user_role", Value: "admin"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthMiddleware_SecretRequiresBearerToken(t *testing.T) {
	r := identityRouter(testSecret)

	tests := map[string]func(*http.Request){
		"headers": func(req *http.Request) {
			req.Header.Set("X-User-ID", "attacker")
			req.Header.Set("X-User-Role", services.RoleAdmin)
		},
		"cookies": func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "user_id", Value: "attacker"})
			req.AddCookie(&http.Cookie{Name: "user_role", Value: "admin"})
		},
	}
	for name, spoof := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			spoof(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	token := signToken(t, jwt.MapClaims{"sub": "user-5", "typ": "access", "exp": time.Now().Add(time.Hour).Unix()})
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-User-Role", services.RoleAdmin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthMiddleware_MissingIdentity(t *testing.T) {
	r := identityRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthenticated")
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	r := identityRouter(testSecret)

	token := signToken(t, jwt.MapClaims{
		"user_id": "user-3",
		"role":    "admin",
		"email":   "admin@example.com",
		"typ":     "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"user-3","role":"admin","email":"admin@example.com"}`, w.Body.String())
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	r := identityRouter(testSecret)

	tests := map[string]string{
		"expired": "Bearer " + signToken(t, jwt.MapClaims{"sub": "user-4", "exp": time.Now().Add(-time.Hour).Unix()}),
		"refresh": "Bearer " + signToken(t, jwt.MapClaims{"sub": "user-4", "typ": "refresh"}),
		"scheme":  "Basic dXNlcjpwYXNz",
		"garbage": "Bearer not-a-token",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireCapability(t *testing.T) {
	r := identityRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "admin-1")
	req.Header.Set("X-User-Role", services.RoleAdmin)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

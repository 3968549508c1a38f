package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/service"
)

type fakeAuthenticator map[string]service.Principal

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (service.Principal, error) {
	if token == "boom" {
		return service.Principal{}, errors.New("db down")
	}
	p, ok := f[token]
	if !ok {
		return service.Principal{}, service.ErrUnauthenticated
	}
	return p, nil
}

func newRouter(auth Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetPrincipal(c).UserID})
	})
	r.GET("/admin", AuthMiddleware(auth), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	user := service.Principal{UserID: uuid.New()}
	admin := service.Principal{UserID: uuid.New(), Admin: true}
	r := newRouter(fakeAuthenticator{"user": user, "admin": admin})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"not bearer", "/me", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"lookup failure", "/me", "Bearer boom", http.StatusInternalServerError},
		{"user", "/me", "Bearer user", http.StatusOK},
		{"user on admin route", "/admin", "Bearer user", http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer admin", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, user.UserID.String(), body["user_id"])
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http.request", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/items/42", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
}

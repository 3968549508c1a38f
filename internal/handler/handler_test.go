package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/service"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrOrderNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", service.ErrProductNotFound), http.StatusNotFound},
		{service.ErrEmptyOrder, http.StatusBadRequest},
		{service.ErrUserAlreadyExists, http.StatusBadRequest},
		{service.ErrInsufficientStock, http.StatusConflict},
		{service.ErrInvalidTransition, http.StatusConflict},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("pq: password authentication failed"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
	require.Len(t, c.Errors, 1)
}

func TestHealthHandler_Readyz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name   string
		checks map[string]Pinger
		want   int
	}{
		{"all up", map[string]Pinger{"postgres": ok, "redis": ok}, http.StatusOK},
		{"redis down", map[string]Pinger{"postgres": ok, "redis": down}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/readyz", NewHealthHandler(tt.checks).Readyz)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestParseID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/orders/:id", func(c *gin.Context) {
		if _, ok := parseID(c, "id"); ok {
			c.Status(http.StatusNoContent)
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/5f8d0d55-b3b5-4bd2-9c3e-1d2f6a0c9b11", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	handler := setupTestHandler(t)

	router := chi.NewRouter()

	// Should not panic
	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")

	routes := map[string]bool{}
	err := chi.Walk(router, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+route] = true
		return nil
	})
	assert.NoError(t, err)

	for _, want := range []string{
		"POST /quantum/evaluate",
		"POST /quantum/evaluate/batch",
		"POST /quantum/optimize",
		"GET /quantum/optimize/stream",
		"GET /quantum/problems",
		"GET /quantum/runs",
		"GET /quantum/runs/{id}",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

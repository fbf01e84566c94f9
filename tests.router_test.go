package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRouter mounts all endpoints of the api handler with both middlewares stacks.
func newTestRouter(api *APIHandler) http.Handler {
	public, ops := api.MiddlewaresStacks()
	return api.SetupRoutes(httprouter.New(), &MiddlewareMap{public: public.Chain, ops: ops.Chain})
}

func newRouterTestStorage() *MockBookStorage {
	return &MockBookStorage{
		AddFunc: func(_ context.Context, _ map[string]interface{}) (string, error) {
			return "x1", nil
		},
		GetOneFunc: func(_ context.Context, id string) (Book, error) {
			if id == "b:1" {
				return Book{"id": id, "name": "Dune"}, nil
			}
			return nil, ErrBookNotFound
		},
		DeleteFunc: func(_ context.Context, _ string) error {
			return nil
		},
		UpdateFunc: func(_ context.Context, _ string, _ map[string]interface{}) error {
			return nil
		},
		GetAllFunc: func(_ context.Context, _ string, _ int) ([]Book, error) {
			return []Book{{"id": "b:1", "name": "Dune"}}, nil
		},
	}
}

//nolint:funlen
func TestRouterRoutes(t *testing.T) {
	api := newTestAPIHandler(newRouterTestStorage())
	api.config.OpsEndpointsEnable = true
	api.metrics = NewMetrics()
	router := newTestRouter(api)

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"index", http.MethodGet, "/", "", http.StatusSeeOther},
		{"status", http.MethodGet, "/status", "", http.StatusOK},
		{"list books", http.MethodGet, "/books", "", http.StatusOK},
		{"create book", http.MethodPost, "/books", `{"name":"Dune"}`, http.StatusCreated},
		{"get book", http.MethodGet, "/books/b:1", "", http.StatusOK},
		{"get unknown book", http.MethodGet, "/books/b:0", "", http.StatusNotFound},
		{"update book", http.MethodPut, "/books/b:1", `{"name":"Dune"}`, http.StatusOK},
		{"update unknown book", http.MethodPut, "/books/b:0", `{"name":"Dune"}`, http.StatusNotFound},
		{"delete book", http.MethodDelete, "/books/b:1", "", http.StatusOK},
		{"delete unknown book", http.MethodDelete, "/books/b:0", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/authors", "", http.StatusNotFound},
		{"ops configs", http.MethodGet, "/ops/configs", "", http.StatusOK},
		{"ops stats", http.MethodGet, "/ops/stats", "", http.StatusOK},
		{"ops metrics", http.MethodGet, "/ops/metrics", "", http.StatusOK},
		{"ops vars", http.MethodGet, "/ops/debug/vars", "", http.StatusOK},
		{"ops maintenance invalid", http.MethodGet, "/ops/maintenance", "", http.StatusBadRequest},
		{"swagger doc", http.MethodGet, "/swagger/doc.json", "", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, "r:abc", w.Header().Get(RequestIDHeader))
		})
	}
}

func TestRouterNotFoundBody(t *testing.T) {
	router := newTestRouter(newTestAPIHandler(newRouterTestStorage()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unknown/path", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Not Found"}`, w.Body.String())
}

func TestRouterTrailingSlashRedirect(t *testing.T) {
	router := newTestRouter(newTestAPIHandler(newRouterTestStorage()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books/", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/books", w.Header().Get("Location"))
}

func TestRouterOpsRoutesDisabled(t *testing.T) {
	api := newTestAPIHandler(newRouterTestStorage())
	api.config.OpsEndpointsEnable = false
	router := newTestRouter(api)
	for _, path := range []string{"/ops/configs", "/ops/stats", "/ops/metrics", "/ops/maintenance"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestRouterProfilerRoutes(t *testing.T) {
	api := newTestAPIHandler(newRouterTestStorage())
	api.config.OpsEndpointsEnable = true

	w := httptest.NewRecorder()
	newTestRouter(api).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/cmdline", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.config.ProfilerEnable = true
	w = httptest.NewRecorder()
	newTestRouter(api).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/cmdline", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterMaintenanceMode(t *testing.T) {
	api := newTestAPIHandler(newRouterTestStorage())
	api.config.OpsEndpointsEnable = true
	router := newTestRouter(api)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/maintenance?status=enable&msg=upgrading", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// ops endpoints stay reachable.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/maintenance?status=disable", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

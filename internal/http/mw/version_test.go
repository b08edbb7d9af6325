package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIVersionHeader(t *testing.T) {
	handler := APIVersion()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-API-Version") == "" {
		t.Error("expected X-API-Version header")
	}
}

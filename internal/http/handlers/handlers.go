// Package handlers contains HTTP handlers for the commerce API.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkwave/commerce-api/internal/http/mw"
	"github.com/inkwave/commerce-api/internal/version"
)

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Short()
	return out, nil
}

// ProbeOutput is the response body for the K8s probes.
type ProbeOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez is the liveness probe.
func Livez(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// DBPinger is the subset of *sql.DB the readiness probe needs.
type DBPinger interface {
	Ping() error
}

// ReadyzHandler reports readiness based on database connectivity.
type ReadyzHandler struct {
	db DBPinger
}

// NewReadyzHandler creates a readiness probe handler.
func NewReadyzHandler(db DBPinger) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz is the readiness probe. Fails when the database is unreachable.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			return nil, huma.Error503ServiceUnavailable("database unavailable")
		}
	}
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// getUserID extracts the authenticated user id from context.
func getUserID(ctx context.Context) string {
	claims := mw.GetUserClaims(ctx)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// requireUser returns the authenticated user id or an unauthorized error.
// The auth middleware normally guarantees claims are present; this is the
// backstop for misregistered routes.
func requireUser(ctx context.Context) (string, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return "", huma.Error401Unauthorized("unauthorized")
	}
	return userID, nil
}

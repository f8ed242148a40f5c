package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/dashgate/pkg/http"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse represents the body of the health endpoint
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	State  string `json:"store_state"`
}

// HealthCheck reports service health based on the gate state store
func HealthCheck(checker HealthChecker, storeDriver string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unhealthy",
				Store:  storeDriver,
				State:  "down",
			})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Store:  storeDriver,
			State:  "up",
		})
	}
}

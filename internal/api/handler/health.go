package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kubarr/kubarr/internal/api/middleware"
	"github.com/kubarr/kubarr/internal/api/response"
	"github.com/kubarr/kubarr/internal/k8s"
)

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	k8sChecker k8s.HealthChecker
	db         Pinger
	version    string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker k8s.HealthChecker, db Pinger, version string) *HealthHandler {
	return &HealthHandler{
		k8sChecker: checker,
		db:         db,
		version:    version,
	}
}

type kubernetesStatus struct {
	Connected bool    `json:"connected"`
	Version   *string `json:"version"`
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status     string           `json:"status"`
	Version    string           `json:"version"`
	Kubernetes kubernetesStatus `json:"kubernetes"`
	Database   databaseStatus   `json:"database"`
}

// ServeHTTP handles the health check request. A lost database makes the
// service unhealthy; a lost cluster only degrades it.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	connectivity := h.k8sChecker.CheckConnectivity(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	dbErr := h.db.Ping(ctx)

	status := "healthy"
	code := http.StatusOK
	var k8sVersion *string

	if connectivity.Connected {
		k8sVersion = &connectivity.Version
	} else {
		status = "degraded"
	}
	if dbErr != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	data := healthData{
		Status:  status,
		Version: h.version,
		Kubernetes: kubernetesStatus{
			Connected: connectivity.Connected,
			Version:   k8sVersion,
		},
		Database: databaseStatus{Connected: dbErr == nil},
	}

	response.Success(w, code, data, requestID)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/connectivity"
)

// ConnectivityChecker reports backend reachability.
type ConnectivityChecker interface {
	Check(ctx context.Context, force bool) connectivity.Status
}

// healthzHandler reports the API plus every backend probe. ?force=true
// bypasses the monitor's throttle.
func healthzHandler(monitor ConnectivityChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "crm-api", Status: "healthy", LastChecked: now},
		}

		if monitor != nil {
			status := monitor.Check(r.Context(), r.URL.Query().Get("force") == "true")
			checked := status.LastChecked.Format(time.RFC3339)
			for _, p := range status.Probes {
				s := domain.ServiceHealth{
					Name:        p.Name,
					Status:      "healthy",
					LatencyMs:   p.Latency.Milliseconds(),
					LastChecked: checked,
				}
				if !p.Online {
					s.Status = "unhealthy"
					s.Error = p.LastError
				}
				services = append(services, s)
			}
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = "degraded"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

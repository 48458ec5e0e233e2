package handler

import (
	"net/http"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"
	"github.com/boddenberg/farma-crm-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dashboard & Reports Handlers
// ============================================================

func dashboardOverviewHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/overview")
		defer span.End()
		overview, err := svc.GetDashboardOverview(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func dashboardStatsHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/stats")
		defer span.End()
		stats, err := svc.GetDashboardStats(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// seriesHandler serves one chart series.
func seriesHandler(name string, get func(r *http.Request) ([]domain.Series, error), logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET "+name)
		defer span.End()
		series, err := get(r.WithContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, series)
	}
}

func dailyConversationsHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return seriesHandler("/v1/dashboard/conversations/daily", func(r *http.Request) ([]domain.Series, error) {
		return svc.GetDailyConversations(r.Context())
	}, logger)
}

func monthlyConversationsHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return seriesHandler("/v1/dashboard/conversations/monthly", func(r *http.Request) ([]domain.Series, error) {
		return svc.GetMonthlyConversations(r.Context())
	}, logger)
}

func messagesByTypeHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return seriesHandler("/v1/dashboard/messages-by-type", func(r *http.Request) ([]domain.Series, error) {
		return svc.GetMessagesByType(r.Context())
	}, logger)
}

func clientsServedHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return seriesHandler("/v1/dashboard/clients-served", func(r *http.Request) ([]domain.Series, error) {
		return svc.GetClientsServedLastWeek(r.Context())
	}, logger)
}

func productCategoriesHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return seriesHandler("/v1/dashboard/product-categories", func(r *http.Request) ([]domain.Series, error) {
		return svc.GetProductCategoryDistribution(r.Context())
	}, logger)
}

func remindersHandler(svc *service.CRM) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/reminders")
		defer span.End()
		writeJSON(w, http.StatusOK, svc.GetUpcomingReminders(ctx))
	}
}

func reportStatsHandler(svc *service.CRM) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.GetReportStats(r.Context()))
	}
}

func campaignReportHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/campaigns")
		defer span.End()
		rows, err := svc.GetCampaignReportData(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func serviceMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetServiceSnapshot())
	}
}

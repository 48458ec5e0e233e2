package handler

import (
	"net/http"

	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"
	"github.com/boddenberg/farma-crm-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps are the collaborators the router wires into handlers.
// Monitor may be nil, in which case /healthz reports only the API itself.
type Deps struct {
	CRM       *service.CRM
	Feeds     *service.FeedRegistry
	Monitor   ConnectivityChecker
	Validator TokenValidator
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract of the pharmacy CRM admin panel.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Monitor))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 (authenticated) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(d.Validator, logger))

		// =============================================
		// 1. Dashboard
		// =============================================
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/overview", dashboardOverviewHandler(d.CRM, logger))
			r.Get("/stats", dashboardStatsHandler(d.CRM, logger))
			r.Get("/conversations/daily", dailyConversationsHandler(d.CRM, logger))
			r.Get("/conversations/monthly", monthlyConversationsHandler(d.CRM, logger))
			r.Get("/reminders", remindersHandler(d.CRM))
			r.Get("/messages-by-type", messagesByTypeHandler(d.CRM, logger))
			r.Get("/clients-served", clientsServedHandler(d.CRM, logger))
			r.Get("/product-categories", productCategoriesHandler(d.CRM, logger))
		})

		// =============================================
		// 2. Reports
		// =============================================
		r.Get("/reports/stats", reportStatsHandler(d.CRM))
		r.Get("/reports/campaigns", campaignReportHandler(d.CRM, logger))

		// =============================================
		// 3. Service metrics
		// =============================================
		r.Get("/metrics/service", serviceMetricsHandler(d.Metrics))

		// =============================================
		// 4. Clients
		// =============================================
		r.Get("/clients", listClientsHandler(d.CRM, logger))
		r.Post("/clients", createClientHandler(d.CRM, logger))
		r.Put("/clients/{id}", updateClientHandler(d.CRM, logger))
		r.Delete("/clients/{id}", deleteClientHandler(d.CRM, logger))

		// =============================================
		// 5. Products
		// =============================================
		r.Get("/products", listProductsHandler(d.CRM, logger))
		r.Post("/products", createProductHandler(d.CRM, logger))
		r.Put("/products/{id}", updateProductHandler(d.CRM, logger))
		r.Delete("/products/{id}", deleteProductHandler(d.CRM, logger))

		// =============================================
		// 6. Campaigns
		// =============================================
		r.Get("/campaigns", listCampaignsHandler(d.CRM, logger))
		r.Post("/campaigns", createCampaignHandler(d.CRM, logger))
		r.Get("/campaigns/details", campaignDetailsHandler(d.CRM, logger))
		r.Patch("/campaigns/{id}/status", updateCampaignStatusHandler(d.CRM, logger))
		r.Delete("/campaigns/{id}", deleteCampaignHandler(d.CRM, logger))
		r.Post("/campaigns/{id}/trigger", triggerCampaignHandler(d.CRM, logger))

		// =============================================
		// 7. Forms
		// =============================================
		r.Get("/forms", listFormsHandler(d.CRM, logger))
		r.Post("/forms", createFormHandler(d.CRM, logger))
		r.Get("/forms/{id}", getFormHandler(d.CRM, logger))
		r.Put("/forms/{id}", updateFormHandler(d.CRM, logger))
		r.Delete("/forms/{id}", deleteFormHandler(d.CRM, logger))
		r.Get("/forms/{id}/responses", formResponsesHandler(d.CRM, logger))

		// =============================================
		// 8. Conversations
		// =============================================
		r.Get("/conversations", listConversationsHandler(d.Feeds, logger))
		r.Get("/conversations/stream", conversationStreamHandler(d.Feeds, logger))
		r.Post("/conversations/{id}/read", openConversationHandler(d.Feeds, logger))
	})

	return r
}

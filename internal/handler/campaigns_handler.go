package handler

import (
	"net/http"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Campaigns Handlers
// ============================================================

func listCampaignsHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/campaigns")
		defer span.End()
		campaigns, err := svc.ListCampaigns(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if campaigns == nil {
			campaigns = []domain.Campaign{}
		}
		writeJSON(w, http.StatusOK, campaigns)
	}
}

func campaignDetailsHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/campaigns/details")
		defer span.End()
		details, err := svc.GetAllCampaignsDetails(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

func createCampaignHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/campaigns")
		defer span.End()
		var in domain.CampaignInput
		if err := decodeJSON(r, &in, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := svc.CreateCampaign(ctx, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateCampaignStatusHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/campaigns/{id}/status")
		defer span.End()
		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("campaign.id", id))
		var req struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := svc.UpdateCampaignStatus(ctx, id, req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteCampaignHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/campaigns/{id}")
		defer span.End()
		if err := svc.DeleteCampaign(ctx, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "campaign deleted"})
	}
}

// triggerCampaignHandler accepts an optional JSON object merged into the
// webhook payload.
func triggerCampaignHandler(svc *service.CRM, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/campaigns/{id}/trigger")
		defer span.End()
		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("campaign.id", id))
		var extra map[string]any
		if err := decodeJSON(r, &extra, true); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		result, err := svc.TriggerCampaign(ctx, id, extra)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, result)
	}
}

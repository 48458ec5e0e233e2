package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Campaigns
//
// Creation notifies the automation engine best-effort; an explicit trigger
// exists only to notify it, so its webhook failure is the caller's failure.
// ============================================================

func (s *CRM) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	ctx, span := tracer.Start(ctx, "CRM.ListCampaigns")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListCampaigns(ctx, actor)
}

func (s *CRM) CreateCampaign(ctx context.Context, in *domain.CampaignInput) (*domain.Campaign, error) {
	ctx, span := tracer.Start(ctx, "CRM.CreateCampaign")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !domain.ValidTrigger(in.Trigger) {
		return nil, &domain.ErrValidation{Field: "trigger", Message: "unknown trigger"}
	}
	if in.Status == "" {
		in.Status = domain.CampaignActive
		if in.ScheduledFor != nil {
			in.Status = domain.CampaignScheduled
		}
	}
	if !domain.ValidCampaignStatus(in.Status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be ativa, pausada or agendada"}
	}

	row := map[string]any{
		"name":            strings.TrimSpace(in.Name),
		"trigger":         in.Trigger,
		"status":          in.Status,
		"target_audience": in.TargetAudience,
		"message":         in.Message,
		"created_by":      actor,
	}
	if in.ScheduledFor != nil {
		row["scheduled_for"] = in.ScheduledFor.UTC()
	}

	campaign, err := s.store.InsertCampaign(ctx, row)
	if err != nil {
		return nil, translateUnique("campaigns", "", err)
	}

	s.logger.Info("campaign created", zap.String("campaign_id", campaign.ID), zap.String("actor", actor))

	// Best-effort: the campaign exists whether or not the engine heard about it.
	if _, err := s.notifier.Notify(ctx, domain.EventCampaignCreated, s.campaignPayload(campaign, actor)); err != nil {
		s.logger.Warn("campaign created but automation webhook failed",
			zap.String("campaign_id", campaign.ID),
			zap.Error(err),
		)
	}

	return campaign, nil
}

func (s *CRM) UpdateCampaignStatus(ctx context.Context, id, status string) (*domain.Campaign, error) {
	ctx, span := tracer.Start(ctx, "CRM.UpdateCampaignStatus")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if !domain.ValidCampaignStatus(status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be ativa, pausada or agendada"}
	}

	return s.store.UpdateCampaign(ctx, id, actor, map[string]any{"status": status})
}

func (s *CRM) DeleteCampaign(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CRM.DeleteCampaign")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	if err := s.store.DeleteCampaign(ctx, id, actor); err != nil {
		return err
	}
	s.logger.Info("campaign deleted", zap.String("campaign_id", id), zap.String("actor", actor))
	return nil
}

// TriggerCampaign asks the automation engine to run a campaign now.
// extra is merged into the payload without overriding campaign fields.
func (s *CRM) TriggerCampaign(ctx context.Context, id string, extra map[string]any) (*domain.TriggerResult, error) {
	ctx, span := tracer.Start(ctx, "CRM.TriggerCampaign")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	campaign, err := s.store.GetCampaign(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	payload := make(map[string]any, len(extra)+10)
	for k, v := range extra {
		payload[k] = v
	}
	for k, v := range s.campaignPayload(campaign, actor) {
		payload[k] = v
	}
	payload["triggeredAt"] = s.now().UTC().Format(time.RFC3339)

	executionID, err := s.notifier.Notify(ctx, domain.EventCampaignTrigger, payload)
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign triggered",
		zap.String("campaign_id", id),
		zap.String("execution_id", executionID),
	)
	return &domain.TriggerResult{
		Success:     true,
		ExecutionID: executionID,
		Message:     "Campanha disparada com sucesso",
	}, nil
}

// campaignPayload reshapes a campaign row for the automation engine.
func (s *CRM) campaignPayload(c *domain.Campaign, actor string) map[string]any {
	payload := map[string]any{
		"campaignId":     c.ID,
		"name":           c.Name,
		"trigger":        c.Trigger,
		"triggerLabel":   domain.TriggerLabel(c.Trigger),
		"status":         c.Status,
		"targetAudience": c.TargetAudience,
		"message":        c.Message,
		"userId":         actor,
	}
	if c.ScheduledFor != nil {
		payload["scheduledFor"] = c.ScheduledFor.UTC().Format(time.RFC3339)
	}
	return payload
}

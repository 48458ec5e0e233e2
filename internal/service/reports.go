package service

import (
	"context"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Reports
// ============================================================

const neverRun = "Nunca executado"

var campaignStatusUI = map[string]string{
	domain.CampaignActive:    "active",
	domain.CampaignPaused:    "paused",
	domain.CampaignScheduled: "scheduled",
}

var automaticSchedule = map[string]string{
	domain.TriggerManual:      "Disparo manual",
	domain.TriggerRecurring:   "Recorrente (automático)",
	domain.TriggerBirthday:    "Aniversário (automático)",
	domain.TriggerPostSale:    "Pós-venda (automático)",
	domain.TriggerReactivate:  "Reativação (automático)",
	domain.TriggerPromotional: "Promoção (sob demanda)",
}

// GetReportStats returns business metrics that are not computed yet.
func (s *CRM) GetReportStats(_ context.Context) *domain.ReportStats {
	return &domain.ReportStats{
		ConversionRate: statChangeUnavailable,
		AverageTicket:  statChangeUnavailable,
		RetentionRate:  statChangeUnavailable,
		ResponseTime:   statChangeUnavailable,
		Period:         "Últimos 30 dias",
	}
}

// GetCampaignReportData sums messages sent per campaign. Executions of
// every campaign are fetched in one query; if that fails every campaign
// reports zero instead of failing the report.
func (s *CRM) GetCampaignReportData(ctx context.Context) ([]domain.CampaignReportRow, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetCampaignReportData")
	defer span.End()
	defer s.observe("campaign_report", time.Now())

	owner := ""
	if s.ownerScoped() {
		actor, err := requireActor(ctx)
		if err != nil {
			return nil, err
		}
		owner = actor
	}

	campaigns, err := s.store.ListCampaigns(ctx, owner)
	if err != nil {
		s.fallback("campaign_report", err)
		return []domain.CampaignReportRow{}, nil
	}

	sent := make(map[string]int, len(campaigns))
	executions, err := s.store.ListExecutions(ctx, campaignIDs(campaigns))
	if err != nil {
		s.fallback("campaign_report.executions", err)
	}
	for _, e := range executions {
		sent[e.CampaignID] += e.MessagesSent
	}

	rows := make([]domain.CampaignReportRow, 0, len(campaigns))
	for _, c := range campaigns {
		rows = append(rows, domain.CampaignReportRow{
			Name:      c.Name,
			Sent:      sent[c.ID],
			Responses: statChangeUnavailable,
			Rate:      statChangeUnavailable,
		})
	}
	return rows, nil
}

// GetAllCampaignsDetails shapes the caller's campaigns for the campaigns screen.
func (s *CRM) GetAllCampaignsDetails(ctx context.Context) ([]domain.CampaignDetails, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetAllCampaignsDetails")
	defer span.End()
	defer s.observe("campaign_details", time.Now())

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	campaigns, err := s.store.ListCampaigns(ctx, actor)
	if err != nil {
		s.fallback("campaign_details", err)
		return []domain.CampaignDetails{}, nil
	}

	lastRun := make(map[string]time.Time, len(campaigns))
	executions, err := s.store.ListExecutions(ctx, campaignIDs(campaigns))
	if err != nil {
		s.fallback("campaign_details.executions", err)
	}
	for _, e := range executions {
		if prev, ok := lastRun[e.CampaignID]; !ok || e.ExecutedAt.After(prev) {
			lastRun[e.CampaignID] = e.ExecutedAt
		}
	}

	details := make([]domain.CampaignDetails, 0, len(campaigns))
	for _, c := range campaigns {
		d := domain.CampaignDetails{
			ID:       c.ID,
			Name:     c.Name,
			Type:     domain.TriggerLabel(c.Trigger),
			Status:   campaignUIStatus(c.Status),
			Audience: c.TargetAudience.Display(),
			LastRun:  neverRun,
			Schedule: s.scheduleText(c),
		}
		if t, ok := lastRun[c.ID]; ok {
			d.LastRun = s.formatDateTime(t)
		}
		details = append(details, d)
	}

	s.logger.Debug("campaign details assembled",
		zap.Int("campaigns", len(details)),
		zap.Int("executions", len(executions)),
	)
	return details, nil
}

func campaignUIStatus(status string) string {
	if ui, ok := campaignStatusUI[status]; ok {
		return ui
	}
	return "unknown"
}

func (s *CRM) scheduleText(c domain.Campaign) string {
	if c.ScheduledFor != nil {
		return s.formatDateTime(*c.ScheduledFor)
	}
	if text, ok := automaticSchedule[c.Trigger]; ok {
		return text
	}
	return "Não agendada"
}

func campaignIDs(campaigns []domain.Campaign) []string {
	ids := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, c.ID)
	}
	return ids
}

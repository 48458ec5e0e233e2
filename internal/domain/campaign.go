package domain

import "time"

// ============================================================
// Campaigns
// ============================================================

// Campaign triggers.
const (
	TriggerManual      = "manual"
	TriggerRecurring   = "recorrente"
	TriggerBirthday    = "aniversario"
	TriggerPostSale    = "posvenda"
	TriggerReactivate  = "reativacao"
	TriggerPromotional = "promocao"
)

// Campaign statuses as stored.
const (
	CampaignActive    = "ativa"
	CampaignPaused    = "pausada"
	CampaignScheduled = "agendada"
)

// Webhook events.
const (
	EventCampaignCreated = "campaign_created"
	EventCampaignTrigger = "campaign_trigger"
)

var triggerLabels = map[string]string{
	TriggerManual:      "Manual",
	TriggerRecurring:   "Recorrente",
	TriggerBirthday:    "Aniversário",
	TriggerPostSale:    "Pós-venda",
	TriggerReactivate:  "Reativação",
	TriggerPromotional: "Promoção",
}

// TriggerLabel returns the human label of a trigger, or the raw value if unknown.
func TriggerLabel(trigger string) string {
	if l, ok := triggerLabels[trigger]; ok {
		return l
	}
	return trigger
}

func ValidTrigger(trigger string) bool {
	_, ok := triggerLabels[trigger]
	return ok
}

func ValidCampaignStatus(status string) bool {
	switch status {
	case CampaignActive, CampaignPaused, CampaignScheduled:
		return true
	}
	return false
}

// Campaign is a marketing campaign run through the automation webhook.
type Campaign struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Trigger        string     `json:"trigger"`
	Status         string     `json:"status"`
	TargetAudience Audience   `json:"target_audience"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
	Message        string     `json:"message,omitempty"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CampaignInput is the payload for creating a campaign.
type CampaignInput struct {
	Name           string     `json:"name"`
	Trigger        string     `json:"trigger"`
	Status         string     `json:"status,omitempty"`
	TargetAudience Audience   `json:"target_audience"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// CampaignExecution is one run of a campaign recorded by the automation engine.
type CampaignExecution struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	ExecutedAt   time.Time `json:"executed_at"`
	MessagesSent int       `json:"messages_sent"`
	Status       string    `json:"status,omitempty"`
}

// CampaignDetails is a campaign row shaped for the campaigns screen.
type CampaignDetails struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Status   string `json:"status"` // active | paused | scheduled | unknown
	Audience string `json:"audience"`
	LastRun  string `json:"lastRun"`
	Schedule string `json:"schedule"`
}

// CampaignReportRow is one line of the campaign performance report.
type CampaignReportRow struct {
	Name      string `json:"name"`
	Sent      int    `json:"sent"`
	Responses string `json:"responses"`
	Rate      string `json:"rate"`
}

// TriggerResult is returned after the webhook accepted a trigger.
type TriggerResult struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"executionId,omitempty"`
	Message     string `json:"message,omitempty"`
}

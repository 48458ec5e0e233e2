package domain

import "time"

// ============================================================
// Dashboard & Reports shapes
// ============================================================

// Series is one point of a chart: a label and a value.
type Series struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// StatMetric is one dashboard card.
type StatMetric struct {
	Total  int    `json:"total"`
	Change string `json:"change"`
	Period string `json:"period"`
}

// DashboardStats are the three headline cards.
type DashboardStats struct {
	Conversations StatMetric `json:"conversations"`
	ActiveClients StatMetric `json:"activeClients"`
	ProductsSold  StatMetric `json:"productsSold"`
}

// Reminder types.
const (
	ReminderRepurchase = "recompra"
	ReminderBirthday   = "aniversario"
	ReminderPostSale   = "posvenda"
)

// Reminder is an upcoming scheduled campaign shown on the dashboard.
type Reminder struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	When  string    `json:"when"` // dd/MM/yyyy HH:mm
	Type  string    `json:"type"`
}

// ReportStats are business metrics not computed yet.
type ReportStats struct {
	ConversionRate string `json:"conversionRate"`
	AverageTicket  string `json:"averageTicket"`
	RetentionRate  string `json:"retentionRate"`
	ResponseTime   string `json:"responseTime"`
	Period         string `json:"period"`
}

// DashboardOverview bundles every dashboard aggregation in one payload.
type DashboardOverview struct {
	Stats                *DashboardStats `json:"stats"`
	DailyConversations   []Series        `json:"dailyConversations"`
	MonthlyConversations []Series        `json:"monthlyConversations"`
	Reminders            []Reminder      `json:"reminders"`
	MessagesByType       []Series        `json:"messagesByType"`
	ClientsServed        []Series        `json:"clientsServed"`
	ProductCategories    []Series        `json:"productCategories"`
}

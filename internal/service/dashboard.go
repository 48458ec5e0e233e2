package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"github.com/jinzhu/now"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ============================================================
// Dashboard aggregations
//
// Every method here returns a usable value even when the store fails;
// the only error ever returned is a missing actor on owner-scoped metrics.
// ============================================================

const (
	statChangeUnavailable = "N/A"
	maxReminders          = 6
	maxMonths             = 6
	maxMessagesSampled    = 1000
	servedWindowDays      = 7
	uncategorized         = "Sem categoria"
)

// Abbreviated pt-BR weekday names as the browser's Intl API prints them,
// indexed by time.Weekday.
var ptBRWeekdays = [7]string{"dom.", "seg.", "ter.", "qua.", "qui.", "sex.", "sáb."}

// GetDashboardStats returns the three headline cards.
func (s *CRM) GetDashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetDashboardStats")
	defer span.End()
	defer s.observe("dashboard_stats", time.Now())

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.DashboardStats{
		Conversations: domain.StatMetric{Change: statChangeUnavailable, Period: "Ativas agora"},
		ActiveClients: domain.StatMetric{Change: statChangeUnavailable, Period: "Total"},
		ProductsSold:  domain.StatMetric{Change: statChangeUnavailable, Period: "Este mês"},
	}

	month := now.New(s.now().In(s.loc))
	monthStart, monthEnd := month.BeginningOfMonth(), month.EndOfMonth()

	// Each sub-metric owns its fallback; the group never cancels siblings.
	var g errgroup.Group
	g.Go(func() error {
		n, err := s.store.CountActiveConversations(ctx)
		if err != nil {
			s.fallback("dashboard_stats.conversations", err)
			return nil
		}
		stats.Conversations.Total = n
		return nil
	})
	g.Go(func() error {
		n, err := s.store.CountActiveClients(ctx, actor)
		if err != nil {
			s.fallback("dashboard_stats.active_clients", err)
			return nil
		}
		stats.ActiveClients.Total = n
		return nil
	})
	g.Go(func() error {
		n, err := s.store.SumItemsSold(ctx, actor, monthStart, monthEnd)
		if err != nil {
			s.fallback("dashboard_stats.products_sold", err)
			return nil
		}
		stats.ProductsSold.Total = n
		return nil
	})
	_ = g.Wait()

	return stats, nil
}

// GetDailyConversations reads the daily conversations view.
func (s *CRM) GetDailyConversations(ctx context.Context) ([]domain.Series, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetDailyConversations")
	defer span.End()

	return s.cachedSeries(ctx, "daily_conversations", s.store.DailyConversations), nil
}

// GetMonthlyConversations reads the monthly view, keeping the most recent months.
func (s *CRM) GetMonthlyConversations(ctx context.Context) ([]domain.Series, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetMonthlyConversations")
	defer span.End()

	return s.cachedSeries(ctx, "monthly_conversations", func(ctx context.Context) ([]domain.Series, error) {
		return s.store.MonthlyConversations(ctx, maxMonths)
	}), nil
}

func (s *CRM) cachedSeries(ctx context.Context, key string, load func(context.Context) ([]domain.Series, error)) []domain.Series {
	series, hit, err := s.series.GetOrLoad(ctx, key, func(ctx context.Context) ([]domain.Series, error) {
		series, err := load(ctx)
		if err == nil && series == nil {
			series = []domain.Series{}
		}
		return series, err
	})
	if hit {
		s.metrics.IncrCacheHit("views")
		return series
	}
	s.metrics.IncrCacheMiss("views")
	if err != nil {
		s.fallback(key, err)
		return []domain.Series{}
	}
	return series
}

// GetUpcomingReminders lists the caller's next scheduled campaigns.
// It never fails, not even without a session.
func (s *CRM) GetUpcomingReminders(ctx context.Context) []domain.Reminder {
	ctx, span := tracer.Start(ctx, "CRM.GetUpcomingReminders")
	defer span.End()

	reminders := []domain.Reminder{}

	actor, err := requireActor(ctx)
	if err != nil {
		s.logger.Debug("reminders: no session, returning empty list")
		return reminders
	}

	campaigns, err := s.store.ListUpcomingCampaigns(ctx, actor, s.now(), maxReminders)
	if err != nil {
		s.fallback("upcoming_reminders", err)
		return reminders
	}

	for _, c := range campaigns {
		if c.ScheduledFor == nil {
			continue
		}
		reminders = append(reminders, domain.Reminder{
			ID:    c.ID,
			Title: c.Name,
			Date:  *c.ScheduledFor,
			When:  s.formatDateTime(*c.ScheduledFor),
			Type:  reminderType(c),
		})
		if len(reminders) == maxReminders {
			break
		}
	}
	return reminders
}

// reminderType classifies by trigger first, then by campaign name.
func reminderType(c domain.Campaign) string {
	switch c.Trigger {
	case domain.TriggerBirthday:
		return domain.ReminderBirthday
	case domain.TriggerPostSale:
		return domain.ReminderPostSale
	case domain.TriggerRecurring:
		return domain.ReminderRepurchase
	}

	name := strings.ToLower(c.Name)
	switch {
	case strings.Contains(name, "anivers"):
		return domain.ReminderBirthday
	case strings.Contains(name, "pós-venda"), strings.Contains(name, "pos-venda"),
		strings.Contains(name, "pós venda"), strings.Contains(name, "posvenda"):
		return domain.ReminderPostSale
	}
	return domain.ReminderRepurchase
}

// GetMessagesByType counts the most recent messages by sender.
func (s *CRM) GetMessagesByType(ctx context.Context) ([]domain.Series, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetMessagesByType")
	defer span.End()
	defer s.observe("messages_by_type", time.Now())

	var conversationIDs []string
	if s.ownerScoped() {
		actor, err := requireActor(ctx)
		if err != nil {
			return nil, err
		}
		conversations, err := s.store.ListAssignedConversations(ctx, actor)
		if err != nil {
			s.fallback("messages_by_type", err)
			return []domain.Series{}, nil
		}
		conversationIDs = make([]string, 0, len(conversations))
		for _, c := range conversations {
			conversationIDs = append(conversationIDs, c.ID)
		}
	}

	messages, err := s.store.ListRecentMessages(ctx, conversationIDs, maxMessagesSampled)
	if err != nil {
		s.fallback("messages_by_type", err)
		return []domain.Series{}, nil
	}

	counts := make(map[string]int)
	for _, m := range messages {
		counts[m.Sender]++
	}
	return sortedSeries(counts), nil
}

// GetClientsServedLastWeek counts unique clients per day over the last
// seven days, oldest first. The result always has seven entries.
func (s *CRM) GetClientsServedLastWeek(ctx context.Context) ([]domain.Series, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetClientsServedLastWeek")
	defer span.End()
	defer s.observe("clients_served", time.Now())

	today := now.New(s.now().In(s.loc)).BeginningOfDay()
	start := today.AddDate(0, 0, -(servedWindowDays - 1))

	days := make([]string, servedWindowDays)
	clients := make(map[string]map[string]struct{}, servedWindowDays)
	for i := range days {
		key := start.AddDate(0, 0, i).Format("2006-01-02")
		days[i] = key
		clients[key] = map[string]struct{}{}
	}

	conversations, err := s.store.ListActiveConversationsSince(ctx, start)
	if err != nil {
		s.fallback("clients_served", err)
		conversations = nil
	}

	for _, c := range conversations {
		if c.Status != domain.ConversationActive {
			continue
		}
		key := c.StartedAt.In(s.loc).Format("2006-01-02")
		if set, ok := clients[key]; ok {
			set[c.ClientID] = struct{}{}
		}
	}

	series := make([]domain.Series, 0, servedWindowDays)
	for i, key := range days {
		series = append(series, domain.Series{
			Name:  weekdayLabel(start.AddDate(0, 0, i).Weekday()),
			Value: len(clients[key]),
		})
	}
	return series, nil
}

// weekdayLabel turns "sáb." into "Sáb". A Caser is not safe for
// concurrent use, so each call builds its own.
func weekdayLabel(d time.Weekday) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.TrimSuffix(ptBRWeekdays[d], "."))
}

// GetProductCategoryDistribution counts the caller's products per category.
func (s *CRM) GetProductCategoryDistribution(ctx context.Context) ([]domain.Series, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetProductCategoryDistribution")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.store.ListProductCategories(ctx, actor)
	if err != nil {
		s.fallback("product_categories", err)
		return []domain.Series{}, nil
	}

	counts := make(map[string]int)
	for _, c := range categories {
		if strings.TrimSpace(c) == "" {
			c = uncategorized
		}
		counts[c]++
	}
	return sortedSeries(counts), nil
}

// GetDashboardOverview runs every dashboard aggregation concurrently.
func (s *CRM) GetDashboardOverview(ctx context.Context) (*domain.DashboardOverview, error) {
	ctx, span := tracer.Start(ctx, "CRM.GetDashboardOverview")
	defer span.End()
	defer s.observe("dashboard_overview", time.Now())

	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}

	out := &domain.DashboardOverview{}
	var g errgroup.Group

	g.Go(func() (err error) {
		out.Stats, err = s.GetDashboardStats(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.DailyConversations, err = s.GetDailyConversations(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.MonthlyConversations, err = s.GetMonthlyConversations(ctx)
		return err
	})
	g.Go(func() error {
		out.Reminders = s.GetUpcomingReminders(ctx)
		return nil
	})
	g.Go(func() (err error) {
		out.MessagesByType, err = s.GetMessagesByType(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.ClientsServed, err = s.GetClientsServedLastWeek(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.ProductCategories, err = s.GetProductCategoryDistribution(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("dashboard overview assembled",
		zap.Int("reminders", len(out.Reminders)),
		zap.Int("categories", len(out.ProductCategories)),
	)
	return out, nil
}

// sortedSeries orders by value descending, then name.
func sortedSeries(counts map[string]int) []domain.Series {
	series := make([]domain.Series, 0, len(counts))
	for name, value := range counts {
		series = append(series, domain.Series{Name: name, Value: value})
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Value != series[j].Value {
			return series[i].Value > series[j].Value
		}
		return series[i].Name < series[j].Name
	})
	return series
}

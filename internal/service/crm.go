package service

import (
	"context"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/config"
	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"
	"github.com/boddenberg/farma-crm-bfa-go/internal/port"
	"github.com/boddenberg/farma-crm-bfa-go/internal/session"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/crm")

// Options tune the CRM service; zero values pick the defaults.
type Options struct {
	// ReportScope is config.ReportScopeGlobal or config.ReportScopeOwner.
	ReportScope string
	// Location is used for month bounds, weekday labels and formatted dates.
	Location *time.Location
	// Now is the clock; tests pin it.
	Now func() time.Time
}

// CRM is the aggregation and CRUD orchestration service behind the admin panel.
type CRM struct {
	store       port.Store
	notifier    port.AutomationNotifier
	series      port.Cache[[]domain.Series]
	metrics     *observability.Metrics
	logger      *zap.Logger
	reportScope string
	loc         *time.Location
	now         func() time.Time
}

// NewCRM creates the CRM service with all dependencies injected.
func NewCRM(
	store port.Store,
	notifier port.AutomationNotifier,
	series port.Cache[[]domain.Series],
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts Options,
) *CRM {
	if opts.ReportScope == "" {
		opts.ReportScope = config.ReportScopeGlobal
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.ReportScope == config.ReportScopeGlobal {
		logger.Warn("reports: messages-by-type and campaign report are not filtered by owner while every other metric is; set REPORT_SCOPE=owner to scope them",
			zap.String("report_scope", opts.ReportScope),
		)
	}

	return &CRM{
		store:       store,
		notifier:    notifier,
		series:      series,
		metrics:     metrics,
		logger:      logger,
		reportScope: opts.ReportScope,
		loc:         opts.Location,
		now:         opts.Now,
	}
}

// requireActor resolves the caller or fails closed.
func requireActor(ctx context.Context) (string, error) {
	actor, ok := session.ActorFromContext(ctx)
	if !ok {
		return "", &domain.ErrUnauthenticated{}
	}
	return actor, nil
}

// fallback records an aggregation that returned its default shape.
func (s *CRM) fallback(operation string, err error) {
	s.metrics.IncrFallback(operation)
	s.logger.Error("aggregation failed, returning default",
		zap.String("operation", operation),
		zap.Error(err),
	)
}

// observe records the duration of an operation.
func (s *CRM) observe(operation string, start time.Time) {
	s.metrics.RecordRequestDuration(operation, time.Since(start))
}

func (s *CRM) ownerScoped() bool {
	return s.reportScope == config.ReportScopeOwner
}

// formatDateTime renders t as dd/MM/yyyy HH:mm in the service location.
func (s *CRM) formatDateTime(t time.Time) string {
	return t.In(s.loc).Format("02/01/2006 15:04")
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/internal/events"
	"github.com/stfrancis-sis/enrollment-api/internal/models"
	appErrors "github.com/stfrancis-sis/enrollment-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:stats"

type dashboardEnrollmentReader interface {
	CountByStatus(ctx context.Context, periodID string) ([]models.EnrollmentStatusCount, error)
}

type dashboardInvoiceReader interface {
	CollectionsSummary(ctx context.Context, schoolYear string) (*models.CollectionsSummary, error)
}

type dashboardPeriodReader interface {
	FindActive(ctx context.Context) (*models.EnrollmentPeriod, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string)
}

// DashboardService aggregates enrollment and collections figures with a
// cache-aside Redis layer. It also subscribes to lifecycle events so any
// mutation drops the cached payload.
type DashboardService struct {
	enrollments dashboardEnrollmentReader
	invoices    dashboardInvoiceReader
	periods     dashboardPeriodReader
	cache       statsCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(enrollments dashboardEnrollmentReader, invoices dashboardInvoiceReader, periods dashboardPeriodReader, cache statsCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		enrollments: enrollments,
		invoices:    invoices,
		periods:     periods,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Stats returns the dashboard payload for the active enrollment period,
// served from cache when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil {
		var cached models.DashboardStats
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	var periodID, schoolYear string
	period, err := s.periods.FindActive(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
		}
	} else {
		periodID = period.ID
		schoolYear = period.SchoolYear
	}

	counts, err := s.enrollments.CountByStatus(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	for i := range counts {
		counts[i].Label = counts[i].Status.Label()
	}

	summary, err := s.invoices.CollectionsSummary(ctx, schoolYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise collections")
	}

	stats := &models.DashboardStats{
		SchoolYear:  schoolYear,
		Enrollments: counts,
		Collections: *summary,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// Name implements events.Subscriber.
func (s *DashboardService) Name() string { return "dashboard-cache" }

// Handle implements events.Subscriber. Every lifecycle event can shift the
// dashboard figures, so the cached payload is simply dropped.
func (s *DashboardService) Handle(ctx context.Context, event events.Event) error {
	if s.cache == nil {
		return nil
	}
	s.cache.Invalidate(ctx, dashboardCacheKey)
	s.logger.Debug("dashboard cache invalidated", zap.String("event", string(event.Type)))
	return nil
}

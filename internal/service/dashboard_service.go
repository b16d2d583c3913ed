package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vms-api/internal/models"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
)

const dashboardCacheKey = "vms:dashboard:summary"

type dashboardRepository interface {
	CountByStatus(ctx context.Context) (map[models.VisitorStatus]int, error)
}

// DashboardSummary aggregates front-desk counters.
type DashboardSummary struct {
	Total           int                          `json:"total"`
	PendingApproval int                          `json:"pending_approval"`
	OnPremises      int                          `json:"on_premises"`
	ByStatus        map[models.VisitorStatus]int `json:"by_status"`
	GeneratedAt     time.Time                    `json:"generated_at"`
}

// DashboardService produces the front-desk summary, cached briefly.
type DashboardService struct {
	repo     dashboardRepository
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService constructs a DashboardService. A nil cache disables
// caching.
func NewDashboardService(repo dashboardRepository, cache Cache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns visit counts grouped by status plus derived counters.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, dashboardCacheKey); ok {
			var summary DashboardSummary
			if err := json.Unmarshal([]byte(raw), &summary); err == nil {
				return &summary, nil
			}
		}
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard counts")
	}

	summary := &DashboardSummary{
		ByStatus:    counts,
		GeneratedAt: s.now(),
	}
	for status, n := range counts {
		summary.Total += n
		if status == models.StatusPending {
			summary.PendingApproval += n
		}
		if status == models.StatusCheckedIn {
			summary.OnPremises += n
		}
	}
	if s.cache != nil {
		if raw, err := json.Marshal(summary); err == nil {
			s.cache.Set(ctx, dashboardCacheKey, string(raw), s.cacheTTL)
		}
	}
	return summary, nil
}

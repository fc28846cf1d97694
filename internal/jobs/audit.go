// Package jobs runs the catalog's periodic background work.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/internal/hierarchy"
)

var integrityFaults = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "catalog_category_integrity_faults",
	Help: "Category tree faults found by the last integrity audit, by kind.",
}, []string{"kind"})

var faultKinds = []hierarchy.FaultKind{
	hierarchy.FaultCycle,
	hierarchy.FaultDepth,
	hierarchy.FaultDanglingParent,
}

// CategoryLister reads the full category list.
type CategoryLister interface {
	ListAll(ctx context.Context, activeOnly bool) ([]domain.Category, error)
}

// IntegrityAudit scans the stored category tree for faults that the write
// path should have prevented. It only reports; it never repairs.
type IntegrityAudit struct {
	categories CategoryLister
	logger     *slog.Logger
}

// NewIntegrityAudit creates an IntegrityAudit.
func NewIntegrityAudit(categories CategoryLister, logger *slog.Logger) *IntegrityAudit {
	return &IntegrityAudit{categories: categories, logger: logger}
}

// Run performs one audit pass and publishes the fault counts.
func (a *IntegrityAudit) Run(ctx context.Context) ([]hierarchy.Fault, error) {
	categories, err := a.categories.ListAll(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list categories for audit: %w", err)
	}

	faults := hierarchy.Audit(categories)

	counts := make(map[hierarchy.FaultKind]int, len(faultKinds))
	for _, f := range faults {
		counts[f.Kind]++
		a.logger.WarnContext(ctx, "category integrity fault",
			slog.String("kind", string(f.Kind)),
			slog.String("category_id", f.CategoryID),
			slog.String("detail", f.Detail),
		)
	}
	for _, kind := range faultKinds {
		integrityFaults.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}

	a.logger.InfoContext(ctx, "category integrity audit finished",
		slog.Int("categories", len(categories)),
		slog.Int("faults", len(faults)),
	)
	return faults, nil
}

// Scheduler runs the integrity audit on a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler registers the audit to run immediately and then every interval.
// Overlapping runs are skipped.
func NewScheduler(audit *IntegrityAudit, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := audit.Run(ctx); err != nil {
				logger.ErrorContext(ctx, "category integrity audit failed",
					slog.String("error", err.Error()),
				)
			}
		}),
		gocron.WithName("category-integrity-audit"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("register integrity audit: %w", err)
	}

	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("starting background scheduler")
	s.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Shutdown() error {
	s.logger.Info("stopping background scheduler")
	return s.scheduler.Shutdown()
}

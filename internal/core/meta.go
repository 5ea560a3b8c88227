package core

import (
	"context"
	"sync"
	"time"

	"rpimon/internal/config"
	"rpimon/internal/domain"
)

// MetaRecorder turns metadata publications into persisted domain.Meta
// records. The family and title of a path come from the sampling
// configuration most recently passed to Bind.
type MetaRecorder struct {
	repo domain.MetaRepository
	now  func() time.Time

	mu       sync.RWMutex
	families map[domain.MetricPath]domain.Family
}

func NewMetaRecorder(repo domain.MetaRepository) *MetaRecorder {
	return &MetaRecorder{
		repo:     repo,
		now:      time.Now,
		families: make(map[domain.MetricPath]domain.Family),
	}
}

func (r *MetaRecorder) Bind(cfg config.Sampling) {
	families := make(map[domain.MetricPath]domain.Family, len(domain.Families))
	for _, f := range domain.Families {
		families[cfg.Path(f)] = f
	}

	r.mu.Lock()
	r.families = families
	r.mu.Unlock()
}

func (r *MetaRecorder) PublishMetadata(ctx context.Context, path domain.MetricPath, unit domain.Unit) error {
	r.mu.RLock()
	family := r.families[path]
	r.mu.RUnlock()

	return r.repo.Upsert(ctx, domain.Meta{
		Path:         path,
		Unit:         unit,
		Family:       family,
		Title:        domain.FamilyTitles[family],
		RegisteredAt: r.now().UTC(),
	})
}

func (r *MetaRecorder) List(ctx context.Context) ([]domain.Meta, error) {
	return r.repo.List(ctx)
}

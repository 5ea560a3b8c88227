package snapshot

import (
	"context"
	"sort"
	"time"

	"rpimon/internal/domain"
)

type entry struct {
	sample     domain.Sample
	recordedAt time.Time
}

// MetricsStore keeps the latest sample of every path and the unit of every
// registered base path. It holds no history.
type MetricsStore struct {
	latest Store[map[domain.MetricPath]entry]
	units  Store[map[domain.MetricPath]domain.Unit]
	now    func() time.Time
}

func NewMetricsStore() *MetricsStore {
	s := &MetricsStore{now: time.Now}
	s.latest.Set(make(map[domain.MetricPath]entry))
	s.units.Set(make(map[domain.MetricPath]domain.Unit))
	return s
}

func (s *MetricsStore) PublishValue(ctx context.Context, smp domain.Sample) error {
	at := s.now().UTC()
	s.latest.Update(func(m *map[domain.MetricPath]entry) {
		(*m)[smp.Path] = entry{sample: smp, recordedAt: at}
	})
	return nil
}

func (s *MetricsStore) PublishMetadata(ctx context.Context, path domain.MetricPath, unit domain.Unit) error {
	s.units.Update(func(m *map[domain.MetricPath]domain.Unit) {
		(*m)[path] = unit
	})
	return nil
}

// Latest returns the most recent value of every path, sorted by path.
func (s *MetricsStore) Latest() []domain.LatestValue {
	var out []domain.LatestValue
	s.latest.View(func(m map[domain.MetricPath]entry) {
		out = make([]domain.LatestValue, 0, len(m))
		for path, e := range m {
			out = append(out, domain.LatestValue{Path: path, Value: e.sample.Value, RecordedAt: e.recordedAt})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *MetricsStore) Get(path domain.MetricPath) (domain.LatestValue, error) {
	var (
		e  entry
		ok bool
	)
	s.latest.View(func(m map[domain.MetricPath]entry) {
		e, ok = m[path]
	})
	if !ok {
		return domain.LatestValue{}, domain.ErrMetricsNotFound
	}
	return domain.LatestValue{Path: path, Value: e.sample.Value, RecordedAt: e.recordedAt}, nil
}

func (s *MetricsStore) Units() map[domain.MetricPath]domain.Unit {
	out := map[domain.MetricPath]domain.Unit{}
	s.units.View(func(m map[domain.MetricPath]domain.Unit) {
		for k, v := range m {
			out[k] = v
		}
	})
	return out
}

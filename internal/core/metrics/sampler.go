// Package metrics
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rpimon/internal/config"
	"rpimon/internal/core/metrics/parser"
	"rpimon/internal/core/metrics/probe"
	"rpimon/internal/domain"
	"rpimon/internal/logger"
)

// Observer receives the outcome of every probe pipeline.
type Observer interface {
	ObserveProbe(family domain.Family, d time.Duration, samples int, err error)
}

type Sampler struct {
	cfg     config.Sampling
	runner  probe.Runner
	sink    domain.Sink
	obs     Observer
	log     logger.Logger
	parsers map[domain.Family]parser.Func

	metaOnce sync.Once
	metaErr  error
}

func NewSampler(cfg config.Sampling, runner probe.Runner, sink domain.Sink, obs Observer, log logger.Logger) *Sampler {
	parsers := make(map[domain.Family]parser.Func, len(domain.Families))
	for _, f := range domain.Families {
		parsers[f] = parser.For(f, cfg.MemSource)
	}

	return &Sampler{
		cfg:     cfg,
		runner:  runner,
		sink:    sink,
		obs:     obs,
		log:     log,
		parsers: parsers,
	}
}

// RegisterMetadata publishes the unit of every base path. Only the first
// call reaches the sink; later calls return the first call's result.
func (s *Sampler) RegisterMetadata(ctx context.Context) error {
	s.metaOnce.Do(func() {
		var errs []error
		for _, f := range domain.Families {
			path := s.cfg.Path(f)
			unit := domain.FamilyUnits[f]
			if err := s.sink.PublishMetadata(ctx, path, unit); err != nil {
				s.log.Error("metadata", "family", f, "path", path, "error", err)
				errs = append(errs, err)
				continue
			}
			s.log.Debug("metadata registered", "family", f, "path", path, "unit", unit)
		}
		s.metaErr = errors.Join(errs...)
	})
	return s.metaErr
}

// Tick runs every probe pipeline concurrently and returns once all of them
// have finished. Pipeline failures are logged and reported, never returned.
func (s *Sampler) Tick(ctx context.Context) domain.TickReport {
	report := domain.TickReport{
		StartedAt: time.Now().UTC(),
		Families:  make([]domain.FamilyReport, len(domain.Families)),
	}

	var g errgroup.Group
	for i, f := range domain.Families {
		g.Go(func() error {
			n, err := s.pipeline(ctx, f)
			report.Families[i] = domain.FamilyReport{Family: f, Samples: n}
			if err != nil {
				report.Families[i].Error = err.Error()
				report.Families[i].Kind = domain.ErrorKind(err)
			}
			return nil
		})
	}
	g.Wait()

	report.Duration = time.Since(report.StartedAt)
	return report
}

func (s *Sampler) pipeline(ctx context.Context, f domain.Family) (n int, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("collector panic", "name", f, "panic", r)
			err = errors.New("pipeline panicked")
		}
		if s.obs != nil {
			s.obs.ObserveProbe(f, time.Since(start), n, err)
		}
	}()

	res, err := s.runner.Run(ctx, s.cfg.Command(f))
	if len(res.Stderr) > 0 {
		s.log.Warn("probe stderr", "name", f, "stderr", string(res.Stderr))
	}
	if err != nil {
		s.log.Error("collector", "name", f, "kind", domain.ErrorKind(err), "error", err)
		return 0, err
	}

	readings, perr := s.parsers[f](string(res.Stdout), s.cfg.Path(f))
	if perr != nil {
		s.log.Warn("collector", "name", f, "kind", domain.ErrorKind(perr), "error", perr)
	}

	unit := domain.FamilyUnits[f]
	for _, r := range readings {
		sample := domain.Sample{Family: f, Path: r.Path, Value: r.Value, Unit: unit}
		if err := s.sink.PublishValue(ctx, sample); err != nil {
			s.log.Error("sink", "name", f, "path", r.Path, "error", err)
			continue
		}
		n++
	}

	s.log.Debug("collector finished", "name", f, "samples", n, "duration", time.Since(start))
	return n, perr
}

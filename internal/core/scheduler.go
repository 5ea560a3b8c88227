package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"rpimon/internal/config"
	"rpimon/internal/domain"
	"rpimon/internal/logger"
)

var ErrSchedulerClosed = errors.New("scheduler is shut down")

// slowestProbe is how long the default CPU utilisation probe blocks.
const slowestProbe = 5 * time.Second

type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Session is one sampler bound to one configuration.
type Session interface {
	RegisterMetadata(ctx context.Context) error
	Tick(ctx context.Context) domain.TickReport
}

type SessionFactory func(cfg config.Sampling) Session

type Status struct {
	State     State              `json:"state"`
	StartedAt time.Time          `json:"started_at,omitzero"`
	Rate      time.Duration      `json:"rate,omitempty"`
	Ticks     uint64             `json:"ticks"`
	LastTick  *domain.TickReport `json:"last_tick,omitempty"`
}

// Scheduler drives a Session on a fixed interval. It has two states:
// Stopped and Running.
//
// Each tick runs on its own goroutine, so a tick slower than the configured
// rate overlaps the next one. Callers should configure a rate larger than
// the slowest probe.
type Scheduler struct {
	log        logger.Logger
	newSession SessionFactory

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	loopDone  chan struct{}
	startedAt time.Time
	rate      time.Duration
	ticks     uint64
	last      *domain.TickReport
	gen       uint64
	closed    bool

	inflight sync.WaitGroup
}

func NewScheduler(log logger.Logger, newSession SessionFactory) *Scheduler {
	return &Scheduler{
		log:        log,
		newSession: newSession,
		state:      StateStopped,
	}
}

// Start validates cfg, registers metadata, runs one tick immediately and then
// one every cfg.Rate. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(cfg config.Sampling) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}

	if s.state == StateRunning {
		s.log.Debug("scheduler already running, start ignored")
		return nil
	}

	if err := cfg.Validate(); err != nil {
		s.log.Error("scheduler: invalid configuration", "error", err)
		return err
	}

	if cfg.Rate <= slowestProbe {
		s.log.Warn("sample rate is not longer than the slowest probe, ticks may overlap",
			"rate", cfg.Rate, "slowest_probe", slowestProbe)
	}

	session := s.newSession(cfg)
	if err := session.RegisterMetadata(context.Background()); err != nil {
		s.log.Warn("metadata registration incomplete", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.state = StateRunning
	s.cancel = cancel
	s.loopDone = done
	s.startedAt = time.Now().UTC()
	s.rate = cfg.Rate
	s.ticks = 0
	s.last = nil
	s.gen++

	go s.loop(ctx, session, s.gen, cfg.Rate, done)

	s.log.Info("scheduler started", "rate", cfg.Rate)
	return nil
}

// Stop cancels the timer. Ticks already in flight finish on their own.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}

	s.cancel()
	done := s.loopDone
	s.state = StateStopped
	s.cancel = nil
	s.loopDone = nil
	s.mu.Unlock()

	<-done
	s.log.Info("scheduler stopped")
}

// Shutdown stops the scheduler for good and drains in-flight ticks. Later
// calls to Start return ErrSchedulerClosed.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	return s.Wait(ctx)
}

// Wait blocks until every in-flight tick has finished or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, Ticks: s.ticks, LastTick: s.last}
	if s.state == StateRunning {
		st.StartedAt = s.startedAt
		st.Rate = s.rate
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, session Session, gen uint64, rate time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	s.tick(session, gen)

	for {
		select {
		case <-ticker.C:
			s.tick(session, gen)
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one session tick. Its result only counts toward the status of
// the session generation that launched it.
func (s *Scheduler) tick(session Session, gen uint64) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		// Stop must not cancel probes that are already running.
		report := session.Tick(context.Background())

		s.mu.Lock()
		current := gen == s.gen
		if current {
			s.ticks++
			s.last = &report
		}
		s.mu.Unlock()

		if !current {
			s.log.Debug("tick of a previous session finished", "samples", report.Samples())
			return
		}

		s.log.Debug("tick finished",
			"samples", report.Samples(),
			"failures", report.Failures(),
			"duration", report.Duration,
		)
	}()
}

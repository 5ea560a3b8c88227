package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rpimon/internal/domain"
)

// Registry fans sample and metadata publications out to every registered
// sink. It is itself a domain.Sink and is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	values map[string]domain.ValueSink
	metas  map[string]domain.MetadataSink
}

func NewRegistry() *Registry {
	return &Registry{
		values: make(map[string]domain.ValueSink),
		metas:  make(map[string]domain.MetadataSink),
	}
}

// Register adds a sink under name. The sink receives values, metadata or
// both depending on which interfaces it implements.
func (r *Registry) Register(name string, sink any) error {
	v, isValue := sink.(domain.ValueSink)
	m, isMeta := sink.(domain.MetadataSink)
	if !isValue && !isMeta {
		return fmt.Errorf("sink %s implements neither ValueSink nor MetadataSink", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.values[name]; dup {
		return fmt.Errorf("sink %s already registered", name)
	}
	if _, dup := r.metas[name]; dup {
		return fmt.Errorf("sink %s already registered", name)
	}

	r.names = append(r.names, name)
	if isValue {
		r.values[name] = v
	}
	if isMeta {
		r.metas[name] = m
	}
	return nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

func (r *Registry) PublishValue(ctx context.Context, s domain.Sample) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.names {
		sink, ok := r.values[name]
		if !ok {
			continue
		}
		if err := sink.PublishValue(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) PublishMetadata(ctx context.Context, path domain.MetricPath, unit domain.Unit) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.names {
		sink, ok := r.metas[name]
		if !ok {
			continue
		}
		if err := sink.PublishMetadata(ctx, path, unit); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

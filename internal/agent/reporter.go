// Package agent pushes sampled vitals to an upstream collector.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"rpimon/internal/domain"
	"rpimon/internal/logger"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	reportPath = "/agent/vitals"

	defaultMaxBatch   = 100
	defaultMaxPending = 5000
)

var ErrUnauthorized = errors.New("upstream rejected credentials")

type reportedSample struct {
	Path       domain.MetricPath `json:"path"`
	Value      float64           `json:"value"`
	Unit       domain.Unit       `json:"unit"`
	RecordedAt time.Time         `json:"recorded_at"`
}

type reportedMeta struct {
	Path domain.MetricPath `json:"path"`
	Unit domain.Unit       `json:"unit"`
}

type batch struct {
	SourceID uuid.UUID        `json:"source_id"`
	Samples  []reportedSample `json:"samples"`
	Meta     []reportedMeta   `json:"meta,omitempty"`
}

// MetricsReporter buffers samples and registered units and posts them in
// batches. When the buffer exceeds its limit the oldest samples are dropped.
type MetricsReporter struct {
	client   *retryablehttp.Client
	baseURL  string
	token    string
	sourceID uuid.UUID
	log      logger.Logger
	now      func() time.Time

	bufferMu   sync.Mutex
	buffer     []reportedSample
	meta       []reportedMeta
	dropped    int
	maxBatch   int
	maxPending int

	flushNow chan struct{}
}

func NewMetricsReporter(baseURL, token string, sourceID uuid.UUID, log logger.Logger) *MetricsReporter {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &MetricsReporter{
		client:     client,
		baseURL:    baseURL,
		token:      token,
		sourceID:   sourceID,
		log:        log,
		now:        time.Now,
		maxBatch:   defaultMaxBatch,
		maxPending: defaultMaxPending,
		flushNow:   make(chan struct{}, 1),
	}
}

func (r *MetricsReporter) PublishValue(ctx context.Context, s domain.Sample) error {
	r.bufferMu.Lock()
	r.buffer = append(r.buffer, reportedSample{
		Path:       s.Path,
		Value:      s.Value,
		Unit:       s.Unit,
		RecordedAt: r.now().UTC(),
	})
	if over := len(r.buffer) - r.maxPending; over > 0 {
		r.buffer = append(r.buffer[:0], r.buffer[over:]...)
		r.dropped += over
	}
	full := len(r.buffer) >= r.maxBatch
	r.bufferMu.Unlock()

	if full {
		select {
		case r.flushNow <- struct{}{}:
		default:
		}
	}
	return nil
}

func (r *MetricsReporter) PublishMetadata(ctx context.Context, path domain.MetricPath, unit domain.Unit) error {
	r.bufferMu.Lock()
	r.meta = append(r.meta, reportedMeta{Path: path, Unit: unit})
	r.bufferMu.Unlock()
	return nil
}

func (r *MetricsReporter) BufferSize() int {
	r.bufferMu.Lock()
	defer r.bufferMu.Unlock()
	return len(r.buffer)
}

// Flush posts everything buffered. On failure the batch is put back in
// front of samples buffered in the meantime.
func (r *MetricsReporter) Flush(ctx context.Context) error {
	r.bufferMu.Lock()
	if len(r.buffer) == 0 && len(r.meta) == 0 {
		r.bufferMu.Unlock()
		return nil
	}

	b := batch{SourceID: r.sourceID, Samples: r.buffer, Meta: r.meta}
	dropped := r.dropped
	r.buffer, r.meta, r.dropped = nil, nil, 0
	r.bufferMu.Unlock()

	if dropped > 0 {
		r.log.Warn("reporter buffer overflowed, oldest samples dropped", "dropped", dropped)
	}

	if err := r.send(ctx, b); err != nil {
		r.requeue(b)
		return err
	}

	r.log.Debug("vitals batch sent", "samples", len(b.Samples), "meta", len(b.Meta))
	return nil
}

func (r *MetricsReporter) requeue(b batch) {
	r.bufferMu.Lock()
	defer r.bufferMu.Unlock()

	r.buffer = append(b.Samples, r.buffer...)
	r.meta = append(b.Meta, r.meta...)
	if over := len(r.buffer) - r.maxPending; over > 0 {
		r.buffer = r.buffer[over:]
		r.dropped += over
	}
}

func (r *MetricsReporter) send(ctx context.Context, b batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal vitals batch: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+reportPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send vitals: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	default:
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
}

// Run flushes every interval, and early when a full batch is buffered, until
// ctx is done. A last flush is attempted on the way out.
func (r *MetricsReporter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("reporter started", "url", r.baseURL+reportPath, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.Flush(shutdownCtx); err != nil {
				r.log.Warn("final flush failed", "error", err, "pending", r.BufferSize())
			}
			return nil
		case <-ticker.C:
		case <-r.flushNow:
		}

		if err := r.Flush(ctx); err != nil {
			r.log.Error("failed to flush vitals", "error", err, "pending", r.BufferSize())
		}
	}
}

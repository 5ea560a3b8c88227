package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"rpimon/internal/config"
	"rpimon/internal/core"
	"rpimon/internal/domain"
	"rpimon/internal/logger"
	"rpimon/internal/system"

	"github.com/google/uuid"
)

type SamplerControl interface {
	Start(cfg config.Sampling) error
	Stop()
	Status() core.Status
}

// StartRequest overlays the loaded sampling configuration. Durations are in
// seconds.
type StartRequest struct {
	Rate         *float64                            `json:"rate" validate:"omitempty,gt=0"`
	ProbeTimeout *float64                            `json:"probe_timeout" validate:"omitempty,gte=0"`
	MemSource    *string                             `json:"mem_source" validate:"omitempty,oneof=free meminfo"`
	Paths        map[domain.Family]domain.MetricPath `json:"paths"`
}

type StatusResponse struct {
	SourceID uuid.UUID    `json:"source_id"`
	Sampler  core.Status  `json:"sampler"`
	Host     *system.Host `json:"host,omitempty"`
	Sinks    []string     `json:"sinks"`
}

type SamplerHandler struct {
	ctl      SamplerControl
	base     config.Sampling
	sourceID uuid.UUID
	sinks    func() []string
	describe func(ctx context.Context) (system.Host, error)
	log      logger.Logger
}

func NewSamplerHandler(ctl SamplerControl, cfg *config.Config, sinks func() []string, log logger.Logger) *SamplerHandler {
	return &SamplerHandler{
		ctl:      ctl,
		base:     cfg.Sampling,
		sourceID: cfg.SourceID,
		sinks:    sinks,
		describe: system.Describe,
		log:      log,
	}
}

func (h *SamplerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	if errs := ValidateStruct(req); errs != nil {
		respondInvalid(w, errs)
		return
	}

	cfg, errs := h.overlay(req)
	if errs != nil {
		respondInvalid(w, errs)
		return
	}

	wasRunning := h.ctl.Status().State == core.StateRunning

	if err := h.ctl.Start(cfg); err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			respondInvalid(w, cfgErr.Fields)
			return
		}
		h.log.Error("failed to start sampler", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to start sampler.")
		return
	}

	msg := "Sampler started."
	if wasRunning {
		msg = "Sampler already running."
	}
	respond(w, http.StatusOK, APIResponse{Message: msg, Data: h.ctl.Status()})
}

func (h *SamplerHandler) overlay(req StartRequest) (config.Sampling, map[string]string) {
	cfg := h.base

	if req.Rate != nil {
		cfg.Rate = time.Duration(*req.Rate * float64(time.Second))
	}
	if req.ProbeTimeout != nil {
		cfg.ProbeTimeout = time.Duration(*req.ProbeTimeout * float64(time.Second))
	}
	if req.MemSource != nil {
		cfg.SetMemSource(*req.MemSource)
	}

	errs := map[string]string{}
	for family, path := range req.Paths {
		switch family {
		case domain.FamilyCPUTemp:
			cfg.PathCPUTemp = path
		case domain.FamilyGPUTemp:
			cfg.PathGPUTemp = path
		case domain.FamilyCPUUtil:
			cfg.PathCPUUtil = path
		case domain.FamilyMemUtil:
			cfg.PathMemUtil = path
		case domain.FamilyStorageUtil:
			cfg.PathSDUtil = path
		default:
			errs["paths."+string(family)] = "Unknown metric family."
		}
	}
	if len(errs) > 0 {
		return cfg, errs
	}
	return cfg, nil
}

func (h *SamplerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.ctl.Stop()
	respond(w, http.StatusOK, APIResponse{Message: "Sampler stopped.", Data: h.ctl.Status()})
}

func (h *SamplerHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		SourceID: h.sourceID,
		Sampler:  h.ctl.Status(),
		Sinks:    h.sinks(),
	}

	if host, err := h.describe(r.Context()); err != nil {
		h.log.Warn("failed to describe host", "error", err)
	} else {
		resp.Host = &host
	}

	respond(w, http.StatusOK, APIResponse{Data: resp})
}

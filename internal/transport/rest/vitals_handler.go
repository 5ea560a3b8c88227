package rest

import (
	"context"
	"errors"
	"net/http"

	"rpimon/internal/domain"
	"rpimon/internal/logger"
)

type LatestReader interface {
	Latest() []domain.LatestValue
	Get(path domain.MetricPath) (domain.LatestValue, error)
}

type MetaLister interface {
	List(ctx context.Context) ([]domain.Meta, error)
}

type VitalsHandler struct {
	latest LatestReader
	meta   MetaLister
	log    logger.Logger
}

func NewVitalsHandler(latest LatestReader, meta MetaLister, log logger.Logger) *VitalsHandler {
	return &VitalsHandler{latest: latest, meta: meta, log: log}
}

func (h *VitalsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		respondList(w, h.latest.Latest())
		return
	}

	v, err := h.latest.Get(domain.MetricPath(raw))
	switch {
	case errors.Is(err, domain.ErrMetricsNotFound):
		respondError(w, http.StatusNotFound, "No value has been sampled for this path yet.")
	case err != nil:
		h.log.Error("failed to read latest value", "path", raw, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to read latest value.")
	default:
		respond(w, http.StatusOK, APIResponse{Data: v})
	}
}

func (h *VitalsHandler) Meta(w http.ResponseWriter, r *http.Request) {
	metas, err := h.meta.List(r.Context())
	if err != nil {
		h.log.Error("failed to list metadata", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list registered paths.")
		return
	}
	respondList(w, metas)
}

// Package rest
package rest

import (
	"net/http"

	"rpimon/internal/config"
	"rpimon/internal/transport/rest/middleware"
)

type RouterDeps struct {
	Vitals     *VitalsHandler
	Sampler    *SamplerHandler
	Prometheus http.Handler
	Ws         http.Handler
}

func NewRouter(cfg *config.Config, deps *RouterDeps) http.Handler {
	mux := http.NewServeMux()

	global := middleware.Stack{middleware.CORS(cfg)}
	private := middleware.Stack{middleware.JWT(cfg)}

	// HEALTH
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// VITALS
	mux.Handle("GET /metrics/latest", private.WrapFunc(deps.Vitals.Latest))
	mux.Handle("GET /metrics/meta", private.WrapFunc(deps.Vitals.Meta))

	// SAMPLER
	mux.Handle("GET /status", private.WrapFunc(deps.Sampler.Status))
	mux.Handle("POST /sampler/start", private.WrapFunc(deps.Sampler.Start))
	mux.Handle("POST /sampler/stop", private.WrapFunc(deps.Sampler.Stop))

	// EXPOSITION
	if deps.Prometheus != nil {
		mux.Handle("GET /prometheus", deps.Prometheus)
	}
	if deps.Ws != nil {
		mux.Handle("GET /ws", deps.Ws)
	}

	return global.Wrap(mux)
}

package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noelpaton-og/globe-weather-api/internal/auth"
	"github.com/noelpaton-og/globe-weather-api/internal/client"
	"github.com/noelpaton-og/globe-weather-api/internal/observability"
	"github.com/noelpaton-og/globe-weather-api/internal/ratelimit"
)

// NewRouter wires the full request pipeline: CORS preflight short-circuit,
// correlation IDs, metrics, auth gate, rate limiter, then the five resource
// handlers plus health and metrics. Stage ordering is fixed; no stage after a
// terminal exit runs. global may be nil to disable the process-wide guard.
func NewRouter(h *Handler, gate *auth.Gate, limiter *ratelimit.Limiter, global *rate.Limiter, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(APIKeyMiddleware(gate))
	router.Use(RateLimitMiddleware(limiter, global))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/ping", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	router.HandleFunc("/weather", h.Resource(client.KindCurrent)).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/forecast", h.Resource(client.KindForecast)).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/airquality", h.Resource(client.KindAirQuality)).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/astronomy", h.Resource(client.KindAstronomy)).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/timezone", h.Resource(client.KindTimezone)).Methods(http.MethodGet, http.MethodPost)

	return CORSMiddleware(router)
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noelpaton-og/globe-weather-api/internal/client"
	"github.com/noelpaton-og/globe-weather-api/internal/gateway"
	"github.com/noelpaton-og/globe-weather-api/internal/lifecycle"
	"github.com/noelpaton-og/globe-weather-api/internal/normalize"
)

var validate = validator.New()

// cityRequest binds the caller's location from query string (GET) or JSON
// body (POST).
type cityRequest struct {
	City string `json:"city" validate:"required,max=128"`
}

var errInvalidJSON = errors.New("invalid JSON in request body")

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	svc          *gateway.Service
	logger       *zap.Logger
	startTime    time.Time
	forecastDays int
}

// NewHandler returns a new Handler. forecastDays is the day count requested
// from upstream for /forecast.
func NewHandler(svc *gateway.Service, logger *zap.Logger, forecastDays int) *Handler {
	return &Handler{
		svc:          svc,
		logger:       logger,
		startTime:    time.Now(),
		forecastDays: forecastDays,
	}
}

// Resource returns the handler for one resource kind. All five endpoints run
// the same pipeline; only the kind descriptor differs.
func (h *Handler) Resource(kind client.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := bindCityRequest(r)
		if err != nil {
			if errors.Is(err, errInvalidJSON) {
				writeError(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON in request body"})
				return
			}
			writeError(w, http.StatusBadRequest, errorBody{Error: "City is required"})
			return
		}

		q := client.Query{City: req.City}
		switch kind {
		case client.KindForecast:
			q.Days = h.forecastDays
		case client.KindAstronomy:
			q.Date = time.Now().UTC().Format("2006-01-02")
		}

		body, cached, err := h.svc.Lookup(r.Context(), kind, q)
		if err != nil {
			h.writeLookupError(w, r, kind, err)
			return
		}

		if logger := loggerFrom(r); logger != nil {
			logger.Debug("request served",
				zap.String("kind", string(kind)),
				zap.String("city", req.City),
				zap.Bool("cached", cached))
		}
		writeRaw(w, http.StatusOK, body)
	}
}

// GetHealth handles GET /health and /ping. Always allowed without a key.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if lifecycle.IsShuttingDown() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "shutting-down",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// bindCityRequest extracts the city from the query string (GET) or a JSON
// body (POST) and validates it.
func bindCityRequest(r *http.Request) (cityRequest, error) {
	var req cityRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errInvalidJSON
		}
	} else {
		req.City = r.URL.Query().Get("city")
	}
	if err := validate.Struct(req); err != nil {
		return req, err
	}
	return req, nil
}

// writeLookupError maps the lookup error taxonomy to a terminal response:
// provider non-2xx mirrored, timeout/transport/malformed as 500.
func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, kind client.Kind, err error) {
	if logger := loggerFrom(r); logger != nil {
		logger.Warn("lookup failed", zap.String("kind", string(kind)), zap.Error(err))
	}

	msg := "Failed to fetch " + kindLabel(kind) + " data"
	var se *client.StatusError
	switch {
	case errors.As(err, &se):
		writeError(w, se.Code, errorBody{Error: msg, Message: err.Error()})
	case errors.Is(err, normalize.ErrMalformed):
		writeError(w, http.StatusInternalServerError, errorBody{Error: msg, Detail: err.Error()})
	default:
		// Timeout, transport failure, caller disconnect.
		writeError(w, http.StatusInternalServerError, errorBody{Error: msg, Message: err.Error()})
	}
}

func kindLabel(kind client.Kind) string {
	switch kind {
	case client.KindCurrent:
		return "weather"
	case client.KindAirQuality:
		return "air quality"
	default:
		return string(kind)
	}
}

// errorBody is the structured error shape for every failure path.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes pre-marshaled JSON. Cached bodies replay byte-identical.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}

func loggerFrom(r *http.Request) *zap.Logger {
	if v := r.Context().Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"acolhebem-backend/internal/components/assert"
	"acolhebem-backend/internal/components/chrono"
	"acolhebem-backend/internal/components/telemetry"
	"acolhebem-backend/internal/scrapers/cademeupsi"
)

// ScraperAPI produces the list of available professionals.
//
// note: fault injection point
type ScraperAPI interface {
	Run(ctx context.Context) cademeupsi.Result
}

const (
	report_available_serve  = "available.serve"
	report_available_encode = "available.encode"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
	"Access-Control-Allow-Methods": "GET, OPTIONS",
}

const cacheControl = "public, max-age=300"

type availableConfig struct {
	tel telemetry.API
}

type AvailableOption func(cfg *availableConfig)

func WithTelemetry(tel telemetry.API) AvailableOption {
	return func(cfg *availableConfig) {
		cfg.tel = tel
	}
}

// AvailableHandler serves the available professionals as json. It never
// responds with a server error, failures turn into an empty list.
type AvailableHandler struct {
	scraper ScraperAPI
	clock   chrono.API
	tel     telemetry.API
}

func NewAvailableHandler(scraper ScraperAPI, clock chrono.API, options ...AvailableOption) AvailableHandler {
	assert.NotNil(scraper, "scraper")
	assert.NotNil(clock, "clock")

	cfg := availableConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	var tel telemetry.API = telemetry.SlogAPI{}
	if cfg.tel != nil {
		tel = cfg.tel
	}

	return AvailableHandler{
		scraper: scraper,
		clock:   clock,
		tel:     telemetry.NewScopedAPI("service", tel),
	}
}

func setCors(w http.ResponseWriter) {
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}
}

func (h AvailableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCors(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	case http.MethodGet:
	default:
		h.writeJson(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	w.Header().Set("Cache-Control", cacheControl)
	h.writeJson(w, http.StatusOK, h.run(r.Context()))
}

func (h AvailableHandler) run(ctx context.Context) (result cademeupsi.Result) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		h.tel.ReportBroken(report_available_serve, fmt.Errorf("panic: %v", r), string(debug.Stack()))
		result = cademeupsi.EmptyResult(h.clock.Now())
	}()

	result = h.scraper.Run(ctx)
	if result.Psychologists == nil {
		result = cademeupsi.EmptyResult(h.clock.Now())
	}
	return result
}

func (h AvailableHandler) writeJson(w http.ResponseWriter, status int, body any) {
	encoded, err := json.Marshal(body)
	if err != nil {
		h.tel.ReportBroken(report_available_encode, err)
		encoded, _ = json.Marshal(cademeupsi.EmptyResult(h.clock.Now()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}

// HealthHandler reports that the process is up, it does not touch the directory.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	setCors(w)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

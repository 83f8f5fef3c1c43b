package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"aidotbridge/aidot"
	"aidotbridge/internal/ledger"
	"aidotbridge/internal/lights"
)

const (
	controlTimeout  = 10 * time.Second
	maxCommandBytes = 4 << 10
)

// HealthHandler returns a simple OK for liveness checks.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HistoryProvider answers per-device history queries. Nil disables the
// history endpoint.
type HistoryProvider interface {
	History(ctx context.Context, deviceID string, limit int) ([]ledger.Entry, error)
}

// API is the JSON API over the bridge's lights.
type API struct {
	lights  map[string]*lights.Light
	order   []string
	history HistoryProvider
	logger  zerolog.Logger
}

func NewAPI(all []*lights.Light, history HistoryProvider, logger zerolog.Logger) *API {
	api := &API{
		lights:  make(map[string]*lights.Light, len(all)),
		history: history,
		logger:  logger,
	}
	for _, light := range all {
		api.lights[light.ID()] = light
		api.order = append(api.order, light.ID())
	}
	return api
}

// Register mounts the API routes on the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/lights", a.handleList)
	mux.HandleFunc("GET /api/lights/{id}", a.handleGet)
	mux.HandleFunc("POST /api/lights/{id}/state", a.handleSetState)
	mux.HandleFunc("GET /api/lights/{id}/history", a.handleHistory)
}

// lightDocument is the JSON rendering of one light.
type lightDocument struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Manufacturer        string             `json:"manufacturer"`
	Model               string             `json:"model"`
	Available           bool               `json:"available"`
	On                  bool               `json:"on"`
	Brightness          int                `json:"brightness"`
	ColorMode           string             `json:"color_mode"`
	SupportedColorModes []lights.ColorMode `json:"supported_color_modes"`
	ColorTempKelvin     int                `json:"color_temp,omitempty"`
	MinColorTempKelvin  int                `json:"min_color_temp,omitempty"`
	MaxColorTempKelvin  int                `json:"max_color_temp,omitempty"`
	RGBW                *aidot.RGBW        `json:"rgbw,omitempty"`
}

func renderLight(light *lights.Light) lightDocument {
	info := light.Info()
	doc := lightDocument{
		ID:                  light.ID(),
		Name:                light.Name(),
		Manufacturer:        info.Manufacturer(),
		Model:               info.Model(),
		Available:           light.Available(),
		On:                  light.IsOn(),
		Brightness:          light.Brightness(),
		ColorMode:           string(light.ColorMode()),
		SupportedColorModes: light.SupportedColorModes(),
	}
	if light.Supports(lights.ModeColorTemp) {
		doc.ColorTempKelvin = light.ColorTempKelvin()
		doc.MinColorTempKelvin = light.MinColorTempKelvin()
		doc.MaxColorTempKelvin = light.MaxColorTempKelvin()
	}
	if light.Supports(lights.ModeRGBW) {
		rgbw := light.RGBW()
		doc.RGBW = &rgbw
	}
	return doc
}

func (a *API) handleList(w http.ResponseWriter, _ *http.Request) {
	docs := make([]lightDocument, 0, len(a.order))
	for _, id := range a.order {
		docs = append(docs, renderLight(a.lights[id]))
	}
	writeJSON(w, http.StatusOK, docs)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	light, ok := a.lights[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown light")
		return
	}
	writeJSON(w, http.StatusOK, renderLight(light))
}

func (a *API) handleSetState(w http.ResponseWriter, r *http.Request) {
	light, ok := a.lights[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown light")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	cmd, err := lights.DecodeCommand(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()

	if err := light.Apply(ctx, cmd); err != nil {
		a.logger.Error().Err(err).Str("device", light.ID()).Msg("state command failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, renderLight(light))
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	light, ok := a.lights[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown light")
		return
	}
	if a.history == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := a.history.History(r.Context(), light.ID(), limit)
	if err != nil {
		a.logger.Error().Err(err).Str("device", light.ID()).Msg("history query failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

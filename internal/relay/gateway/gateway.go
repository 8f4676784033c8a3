// Package gateway exposes the device-facing HTTP surface: validated
// ingest endpoints that normalize payloads into events, the on-demand
// catalog listings, and the WebSocket endpoint dashboard clients
// subscribe through.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relay/internal/relay"
	"relay/internal/relay/metrics"
	"relay/internal/relay/ws"
	"relay/internal/validator"
)

// Config holds the gateway's HTTP-level settings.
type Config struct {
	AllowedOrigin     string `env:"ALLOWED_ORIGIN" envDefault:"https://ico-pond.vercel.app"`
	CatalogMaxResults int    `env:"CATALOG_MAX_RESULTS" envDefault:"10"`
	PestPrefix        string `env:"CATALOG_PEST_PREFIX" envDefault:"hama"`
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	bus       relay.Bus
	forwarder relay.Forwarder
	catalog   relay.Catalog
	logger    *zap.Logger
	registry  *metrics.Registry
	config    Config
	wsConfig  ws.Config
	upgrader  websocket.Upgrader
}

// New creates the gateway handler and registers all routes.
func New(
	bus relay.Bus,
	forwarder relay.Forwarder,
	catalog relay.Catalog,
	logger *zap.Logger,
	registry *metrics.Registry,
	config Config,
	wsConfig ws.Config,
) (http.Handler, error) {
	h := &Handler{
		bus:       bus,
		forwarder: forwarder,
		catalog:   catalog,
		logger:    logger.Named("gateway"),
		registry:  registry,
		config:    config,
		wsConfig:  wsConfig,
	}

	if err := validator.Validate("gateway",
		h.bus, h.forwarder, h.catalog, h.logger, h.registry,
		config.AllowedOrigin, config.CatalogMaxResults, config.PestPrefix,
		wsConfig.SendBuffer, wsConfig.PingInterval, wsConfig.WriteTimeout); err != nil {
		return nil, fmt.Errorf("failed to validate gateway deps: %w", err)
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == config.AllowedOrigin
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.cors)

	r.Post("/ph", h.handlePH)
	r.Post("/servo/{source}", h.handleServo)
	r.Post("/new-image", h.handleNewImage)
	r.Post("/curah-hujan", h.handleCurahHujan)
	r.Get("/", h.handleListImages)
	r.Get("/hama", h.handleListPest)
	r.Get("/ws", h.handleSubscribe)
	r.Get("/healthz", h.handleHealthz)

	return r, nil
}

// handlePH ingests a pH reading and broadcasts it on phUpdate.
func (h *Handler) handlePH(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PH any `json:"ph"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeMessage(w, "/ph", http.StatusBadRequest, "Format data tidak valid")
		return
	}

	value, err := parsePH(body.PH)
	if err != nil {
		h.writeValidation(w, "/ph", err)
		return
	}

	h.bus.Publish(relay.Event{
		Kind:       relay.KindPHReading,
		Payload:    value,
		Source:     "device",
		OccurredAt: time.Now(),
	})

	h.writeJSON(w, "/ph", http.StatusOK, map[string]any{
		"message": "pH diterima",
		"ph":      value,
	})
}

// handleServo ingests a servo action, broadcasts it on servoLog, and
// enqueues a mirror task. The response is sent regardless of forwarding
// outcome: the mirror is fire-and-forget.
func (h *Handler) handleServo(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	var body struct {
		Jenis string `json:"jenis"`
		Waktu string `json:"waktu"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeMessage(w, "/servo", http.StatusBadRequest, "Format data tidak valid")
		return
	}

	if body.Jenis != "pakan" && body.Jenis != "pupuk" {
		h.writeMessage(w, "/servo", http.StatusBadRequest,
			"Jenis servo tidak valid (harus 'pakan' atau 'pupuk')")
		return
	}

	waktu := body.Waktu
	if waktu == "" {
		waktu = FormatWaktu(time.Now())
	}

	h.bus.Publish(relay.Event{
		Kind:       relay.KindServoAction,
		Payload:    relay.ServoLog{Waktu: waktu, Jenis: body.Jenis},
		Source:     source,
		OccurredAt: time.Now(),
	})

	h.forwarder.Enqueue(relay.SinkTask{
		Record: relay.ServoRecord{
			Waktu:  waktu,
			Jenis:  body.Jenis,
			Source: source,
			Aksi:   fmt.Sprintf("Servo pemberi %s berjalan", body.Jenis),
		},
		EnqueuedAt: time.Now(),
	})

	h.writeJSON(w, "/servo", http.StatusOK, map[string]any{
		"message": "Log servo diterima",
		"jenis":   body.Jenis,
		"waktu":   waktu,
	})
}

// handleNewImage announces a pest-detection image on newImageUrl. This
// path only announces; the catalog is queried separately on demand.
func (h *Handler) handleNewImage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL       string `json:"url"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeMessage(w, "/new-image", http.StatusBadRequest, "Format data tidak valid")
		return
	}

	if body.URL == "" || body.Timestamp == "" {
		h.writeMessage(w, "/new-image", http.StatusBadRequest, "url dan timestamp wajib ada")
		return
	}

	h.bus.Publish(relay.Event{
		Kind:       relay.KindImageDetected,
		Payload:    relay.ImageNotice{URL: body.URL, Timestamp: body.Timestamp},
		Source:     "device",
		OccurredAt: time.Now(),
	})

	h.writeMessage(w, "/new-image", http.StatusOK, "Gambar baru dikirim ke client")
}

// handleCurahHujan ingests a rain status and broadcasts it on
// curahHujanUpdate.
func (h *Handler) handleCurahHujan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeMessage(w, "/curah-hujan", http.StatusBadRequest, "Format data tidak valid")
		return
	}

	if body.Status == "" {
		h.writeMessage(w, "/curah-hujan", http.StatusBadRequest, "Field 'status' wajib diisi")
		return
	}

	h.bus.Publish(relay.Event{
		Kind:       relay.KindRainStatus,
		Payload:    body.Status,
		Source:     "device",
		OccurredAt: time.Now(),
	})

	h.writeMessage(w, "/curah-hujan", http.StatusOK, "Status curah hujan diterima")
}

// handleListImages lists the most recent catalog uploads.
func (h *Handler) handleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.catalog.ListRecent(r.Context(), "", h.config.CatalogMaxResults)
	if err != nil {
		h.logger.Error("catalog listing failed", zap.Error(err))
		h.writeMessage(w, "/", http.StatusInternalServerError,
			"Terjadi kesalahan saat mengambil gambar")
		return
	}

	h.writeJSON(w, "/", http.StatusOK, map[string]any{
		"imageUrls": images,
	})
}

// pestEntry is one row of the pest-detection listing.
type pestEntry struct {
	No         int    `json:"no"`
	Waktu      string `json:"waktu"`
	Keterangan string `json:"keterangan"`
	ImageURL   string `json:"imageUrl"`
}

// handleListPest lists recent pest-detection images, numbered from 1 in
// most-recent-first order.
func (h *Handler) handleListPest(w http.ResponseWriter, r *http.Request) {
	images, err := h.catalog.ListRecent(r.Context(), h.config.PestPrefix, h.config.CatalogMaxResults)
	if err != nil {
		h.logger.Error("pest listing failed", zap.Error(err))
		h.writeMessage(w, "/hama", http.StatusInternalServerError,
			"Terjadi kesalahan saat mengambil gambar")
		return
	}

	entries := make([]pestEntry, 0, len(images))
	for i, img := range images {
		entries = append(entries, pestEntry{
			No:         i + 1,
			Waktu:      img.Timestamp,
			Keterangan: "Terdeteksi hama burung",
			ImageURL:   img.URL,
		})
	}

	h.writeJSON(w, "/hama", http.StatusOK, map[string]any{
		"data": entries,
	})
}

// handleSubscribe upgrades the connection and registers it with the bus.
// The client receives every event published after registration until the
// transport closes.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(conn, h.logger, h.wsConfig)
	h.bus.Subscribe(client)

	go client.WritePump()
	go client.ReadPump(func() {
		h.bus.Unsubscribe(client.ID())
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, "/healthz", http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": h.bus.SubscriberCount(),
	})
}

// parsePH accepts a JSON number or a numeric string, matching what the
// device firmware sends. Non-finite values are rejected: NaN and Inf
// have no JSON encoding and would poison every subscriber's write pump.
func parsePH(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, relay.Validation("Format data tidak valid")
		}
		f = parsed
	default:
		return 0, relay.Validation("Format data tidak valid")
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, relay.Validation("Format data tidak valid")
	}

	return f, nil
}

// writeValidation maps a validation error to a 400; anything else is an
// internal error, which the ingest paths do not produce today.
func (h *Handler) writeValidation(w http.ResponseWriter, endpoint string, err error) {
	var verr *relay.ValidationError
	if errors.As(err, &verr) {
		h.writeMessage(w, endpoint, http.StatusBadRequest, verr.Message)
		return
	}
	h.writeMessage(w, endpoint, http.StatusInternalServerError, "Terjadi kesalahan")
}

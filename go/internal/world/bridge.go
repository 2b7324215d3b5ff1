package world

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mcdev12/turfwar/go/internal/location"
	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Bridge exposes the engine over HTTP so the device location provider and
// the map view can feed it and read it back.
type Bridge struct {
	engine *Engine
}

// NewBridge creates a bridge over engine
func NewBridge(engine *Engine) *Bridge {
	return &Bridge{engine: engine}
}

// LocationRequest is the body of PUT /api/world/location
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Initial   bool     `json:"initial"`
}

// ViewportRequest is the body of PUT /api/world/viewport
type ViewportRequest struct {
	Latitude       *float64 `json:"latitude" validate:"required,latitude"`
	Longitude      *float64 `json:"longitude" validate:"required,longitude"`
	LatitudeDelta  float64  `json:"latitudeDelta" validate:"gte=0"`
	LongitudeDelta float64  `json:"longitudeDelta" validate:"gte=0"`
}

// StateResponse describes everything but the zones themselves.
type StateResponse struct {
	Seq          uint64                `json:"seq"`
	Connection   string                `json:"connection"`
	Session      string                `json:"session"`
	Profile      *models.PlayerProfile `json:"profile,omitempty"`
	Exhausted    bool                  `json:"exhausted"`
	Located      bool                  `json:"located"`
	Position     *models.Coordinate    `json:"position,omitempty"`
	Viewport     models.Viewport       `json:"viewport"`
	Usable       bool                  `json:"usable"`
	PlayerCircle *PlayerCircle         `json:"player_circle,omitempty"`
	ZoneCount    int                   `json:"zone_count"`
	CanCapture   bool                  `json:"can_capture"`
	CaptureBlock string                `json:"capture_blocked_reason,omitempty"`
}

// VisibleZonesResponse is what the map should draw.
type VisibleZonesResponse struct {
	Seq          uint64               `json:"seq"`
	Located      bool                 `json:"located"`
	Usable       bool                 `json:"usable"`
	Zones        []models.CaptureZone `json:"zones"`
	PlayerCircle *PlayerCircle        `json:"player_circle,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var requestValidator = validator.New()

// Routes returns the bridge router with CORS applied.
func (b *Bridge) Routes() http.Handler {
	r := chi.NewRouter()

	r.Method(http.MethodGet, "/health", NewHealthChecker(b.engine))
	r.Route("/api/world", func(r chi.Router) {
		r.Get("/state", b.handleState)
		r.Get("/zones/visible", b.handleVisibleZones)
		r.Put("/location", b.handleLocation)
		r.Put("/viewport", b.handleViewport)
		r.Post("/captures", b.handleCapture)
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// NewBridgeServer wraps handler in an HTTP server that also accepts
// cleartext HTTP/2.
func NewBridgeServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func (b *Bridge) handleState(w http.ResponseWriter, r *http.Request) {
	snap := b.engine.Snapshot()

	resp := StateResponse{
		Seq:        snap.Seq,
		Connection: snap.Connection.String(),
		Session:    snap.Session.String(),
		Profile:    snap.Profile,
		Exhausted:  snap.Exhausted,
		Located:    snap.Located,
		Viewport:   snap.Viewport,
		Usable:     snap.Usable(),
		ZoneCount:  snap.Zones.Len(),
	}
	if snap.Located {
		pos := snap.Position
		resp.Position = &pos
	}
	if circle, ok := snap.PlayerCircle(); ok {
		resp.PlayerCircle = &circle
	}
	if err := snap.CanCapture(); err != nil {
		resp.CaptureBlock = err.Error()
	} else {
		resp.CanCapture = true
	}

	writeJSON(w, http.StatusOK, resp)
}

func (b *Bridge) handleVisibleZones(w http.ResponseWriter, r *http.Request) {
	snap := b.engine.Snapshot()

	resp := VisibleZonesResponse{
		Seq:     snap.Seq,
		Located: snap.Located,
		Usable:  snap.Usable(),
		Zones:   snap.Visible(),
	}
	if resp.Zones == nil {
		resp.Zones = []models.CaptureZone{}
	}
	if circle, ok := snap.PlayerCircle(); ok {
		resp.PlayerCircle = &circle
	}

	writeJSON(w, http.StatusOK, resp)
}

func (b *Bridge) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	coord := models.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := b.engine.UpdatePosition(r.Context(), coord, req.Initial); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Bridge) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	vp := models.Viewport{
		Center:         models.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude},
		LatitudeDelta:  req.LatitudeDelta,
		LongitudeDelta: req.LongitudeDelta,
	}
	if err := b.engine.ChangeViewport(r.Context(), vp); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Bridge) handleCapture(w http.ResponseWriter, r *http.Request) {
	if err := b.engine.Capture(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	snap := b.engine.Snapshot()
	resp := struct {
		RemainingCaptures int `json:"remaining_captures"`
	}{}
	if snap.Profile != nil {
		resp.RemainingCaptures = snap.Profile.RemainingCaptures
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	if err := requestValidator.Struct(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, location.ErrInvalidCoordinate), errors.Is(err, models.ErrInvalidViewport):
		status = http.StatusBadRequest
	case errors.Is(err, ErrAnonymous):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrNoAllowance), errors.Is(err, ErrAllowanceExhausted),
		errors.Is(err, location.ErrLocationUnavailable):
		status = http.StatusConflict
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrSendQueueFull),
		errors.Is(err, ErrChannelClosed), errors.Is(err, ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		log.Error().Err(err).Msg("world bridge request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

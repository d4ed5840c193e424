package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"stock-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins is a comma-separated CORS allow list. Empty disables CORS.
	AllowedOrigins string
	// JWTSecret enables bearer-token auth on write routes when non-empty.
	JWTSecret string
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Logger  *zap.Logger
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: opts.JWTSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health and metrics (public) ───────────────────────────────────────────
	r.Get("/api/health", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// ── Read routes (public) ──────────────────────────────────────────────────
	r.Get("/api/stock/pool", h.apiListPool)
	r.Get("/api/stock/pool/export.xlsx", h.apiExportPool)
	r.Get("/api/stock/pool/{itemID}", h.apiPoolQuantity)
	r.Get("/api/stock/items/{itemID}/distribution", h.apiItemDistribution)
	r.Get("/api/stock/items/{itemID}/movements", h.apiItemMovements)
	r.Get("/api/locations", h.apiListCenters)
	r.Get("/api/locations/{locationID}/stock", h.apiLocationStock)

	// ── Write routes (JWT when configured, 1 MB body limit) ───────────────────
	r.Group(func(r chi.Router) {
		if h.jwtSecret != "" {
			r.Use(h.RequireAuth)
		}
		r.Use(RequestBodyLimit(1 << 20))

		r.Post("/api/stock/replenish", h.apiReplenish)
		r.Post("/api/stock/allocate", h.apiAllocate)
		r.Post("/api/stock/allocate-batch", h.apiAllocateBatch)
		r.Post("/api/stock/return", h.apiReturn)
	})

	h.router = r
	return h
}

// ServeHTTP dispatches to the chi router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// health resolves the pool location. A missing pool is a 500, not a 404.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}

	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// pathID parses a positive integer URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+": must be a positive integer", "INVALID_ARGUMENT", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

package capture

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pokedex-live/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// WebhookSecretHeader carries the webhook secret on POST /capture.
const WebhookSecretHeader = "X-Webhook-Secret"

// Request bodies are tiny; anything larger is a client error.
const maxBodyBytes = 64 << 10

// HandlerConfig holds the gateway's policy knobs.
type HandlerConfig struct {
	AdminSecret Secret

	// WebhookSecret is optional. When unconfigured, /capture accepts any caller.
	WebhookSecret Secret

	// EnforceIDRange rejects ids outside 1..CollectionSize.
	EnforceIDRange bool

	// ViewerIdleTimeout closes viewers that send nothing (not even a pong
	// frame) for this long.
	ViewerIdleTimeout time.Duration

	// Static serves display assets for non-upgrade requests to /. May be nil.
	Static http.Handler
}

// Handler exposes the capture webhook, admin endpoints and the viewer
// channel using go-chi.
type Handler struct {
	svc      *Service
	log      *slog.Logger
	metrics  *metrics.Metrics
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler. Metrics may be nil to disable metric recording.
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics, cfg HandlerConfig) *Handler {
	if cfg.ViewerIdleTimeout <= 0 {
		cfg.ViewerIdleTimeout = 60 * time.Second
	}
	return &Handler{
		svc:     svc,
		log:     log,
		metrics: m,
		cfg:     cfg,
		// Viewers are read-only displays served from any host name, so the
		// origin is not checked.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/capture", h.Capture)
	r.Route("/admin", func(r chi.Router) {
		r.Post("/verify", h.AdminVerify)
		r.Post("/reset", h.AdminReset)
		r.Post("/complete", h.AdminComplete)
	})
	r.Get("/healthz", h.Health)
	r.Get("/ws", h.Viewer)
	r.Get("/*", h.Root)
}

// Capture handles POST /capture.
// Body: { "id": 25, "name": "Pikachu" }.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	if !h.webhookAuthorized(r) {
		h.log.Warn("capture rejected: invalid webhook secret",
			slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	var req CaptureRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.log.Debug("invalid capture body", slog.String("error", err.Error()))
		http.Error(w, "incomplete capture data", http.StatusBadRequest)
		return
	}
	if err := req.Validate(h.cfg.EnforceIDRange); err != nil {
		h.log.Info("capture rejected",
			slog.Int("id", int(req.ID)),
			slog.String("name", req.Name),
			slog.String("error", err.Error()))
		msg := "incomplete capture data"
		if errors.Is(err, ErrIDOutOfRange) {
			msg = err.Error()
		}
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	ev := h.svc.RecordCapture(int(req.ID), req.Name)

	h.log.Info("capture processed",
		slog.Int("id", ev.ID),
		slog.String("name", ev.Name),
		slog.String("outcome", ev.Outcome.String()))
	writeText(w, http.StatusOK, "capture received")
}

// AdminVerify handles POST /admin/verify. Body: { "secret": "..." }.
func (h *Handler) AdminVerify(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(w, r, "verify") {
		return
	}
	writeText(w, http.StatusOK, "secret accepted")
}

// AdminReset handles POST /admin/reset. Body: { "secret": "..." }.
func (h *Handler) AdminReset(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(w, r, "reset") {
		return
	}
	h.svc.Reset()
	h.log.Info("captured set reset")
	writeText(w, http.StatusOK, "collection reset")
}

// AdminComplete handles POST /admin/complete. Body: { "secret": "..." }.
func (h *Handler) AdminComplete(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(w, r, "complete") {
		return
	}
	ids := h.svc.CompleteAll()
	h.log.Info("captured set completed", slog.Int("captured", len(ids)))
	writeText(w, http.StatusOK, "collection completed")
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"captured": h.svc.CapturedCount(),
		"viewers":  h.svc.ViewerCount(),
	})
}

// Root handles GET /. WebSocket upgrades become viewer sessions (display
// clients connect to the host root); anything else goes to the static
// assets when configured.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.Viewer(w, r)
		return
	}
	if h.cfg.Static == nil {
		http.NotFound(w, r)
		return
	}
	h.cfg.Static.ServeHTTP(w, r)
}

// Viewer upgrades the request and attaches a viewer session.
func (h *Handler) Viewer(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.log.Debug("viewer upgrade failed", slog.String("error", err.Error()))
		return
	}

	sess := NewSession(conn)
	if err := h.svc.Serve(sess, h.cfg.ViewerIdleTimeout); err != nil {
		h.log.Warn("viewer rejected", slog.String("error", err.Error()))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

// webhookAuthorized checks the webhook secret header. With no webhook
// secret configured the check is bypassed and every caller is accepted.
func (h *Handler) webhookAuthorized(r *http.Request) bool {
	if !h.cfg.WebhookSecret.Configured() {
		return true // open by default
	}
	return h.cfg.WebhookSecret.Matches(r.Header.Get(WebhookSecretHeader))
}

// authorizeAdmin checks the body secret against the admin secret and
// writes 403 on mismatch. A body that cannot be decoded carries no secret.
func (h *Handler) authorizeAdmin(w http.ResponseWriter, r *http.Request, action string) bool {
	var req AdminRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.log.Debug("invalid admin body", slog.String("action", action), slog.String("error", err.Error()))
		req = AdminRequest{}
	}

	if !h.cfg.AdminSecret.Matches(req.Secret) {
		h.log.Warn("admin request denied",
			slog.String("action", action),
			slog.String("remote_addr", r.RemoteAddr))
		h.metrics.IncAdminActions(action, "denied")
		http.Error(w, "access denied", http.StatusForbidden)
		return false
	}
	h.metrics.IncAdminActions(action, "ok")
	return true
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

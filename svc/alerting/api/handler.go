// Package api exposes the alert service over HTTP and receives delivery
// status callbacks from providers.
//
//	POST /v1/alerts                     send or schedule an alert
//	GET  /v1/alerts/{id}                alert with its attempts
//	GET  /v1/recipients/{id}/stats      delivery analytics (?window_days=N)
//	POST /v1/callbacks/twilio           Twilio message status (SMS, WhatsApp)
//	POST /v1/callbacks/postmark         Postmark delivery/open/click/bounce
//	POST /v1/callbacks/{channel}        signed generic status event
//	GET  /v1/recipients/{id}/notifications  dashboard inbox (WithInbox)
//	GET  /healthz                       readiness
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xpertseller/alertkit/pkg/httpserver"
	"github.com/xpertseller/alertkit/pkg/requestid"
	"github.com/xpertseller/alertkit/pkg/validator"
	"github.com/xpertseller/alertkit/svc/alerting"
)

const (
	maxBodyBytes      = 1 << 20
	defaultWindowDays = 30
	maxWindowDays     = 365
	// DefaultSignatureMaxAge bounds the age of signed generic callbacks.
	DefaultSignatureMaxAge = 5 * time.Minute
)

// Service is the part of *alerting.Service the API calls.
type Service interface {
	SendAlert(ctx context.Context, req alerting.SendAlertRequest) (*alerting.SendResult, error)
	GetAlert(ctx context.Context, id string) (*alerting.AlertView, error)
	GetDeliveryStats(ctx context.Context, recipientID string, windowDays int) (alerting.DeliveryStats, error)
	RecordDeliveryEvent(ctx context.Context, ev alerting.DeliveryEvent) (alerting.DeliveryAttempt, error)
}

// CallbackConfig holds provider callback credentials. A provider whose
// credentials are empty has its callback route answer 404.
type CallbackConfig struct {
	// PublicBaseURL is the externally visible scheme and host Twilio signs,
	// e.g. "https://alerts.example.com".
	PublicBaseURL    string `env:"CALLBACK_BASE_URL"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	PostmarkUsername string `env:"POSTMARK_WEBHOOK_USERNAME"`
	PostmarkPassword string `env:"POSTMARK_WEBHOOK_PASSWORD"`
	// Secret verifies the HMAC signature of generic callbacks.
	Secret string `env:"CALLBACK_SECRET"`
}

type Handler struct {
	svc       Service
	callbacks CallbackConfig
	checks    []httpserver.Check
	inbox     Inbox
	logger    *slog.Logger
	maxAge    time.Duration
	clock     func() time.Time
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithCallbacks(cfg CallbackConfig) Option {
	return func(h *Handler) { h.callbacks = cfg }
}

// WithHealthChecks adds readiness probes to /healthz.
func WithHealthChecks(checks ...httpserver.Check) Option {
	return func(h *Handler) { h.checks = append(h.checks, checks...) }
}

func WithSignatureMaxAge(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.maxAge = d
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

func New(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		logger: slog.Default(),
		maxAge: DefaultSignatureMaxAge,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the API routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthCheckHandler(h.logger, 5*time.Second, h.checks...))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/alerts", h.sendAlert)
		r.Get("/alerts/{id}", h.getAlert)
		r.Get("/recipients/{id}/stats", h.recipientStats)
		h.mountInbox(r)

		r.Route("/callbacks", func(r chi.Router) {
			r.Post("/twilio", h.twilioCallback)
			r.Post("/postmark", h.postmarkCallback)
			r.Post("/{channel}", h.genericCallback)
		})
	})
	return r
}

func (h *Handler) sendAlert(w http.ResponseWriter, r *http.Request) {
	var req alerting.SendAlertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.SendAlert(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Scheduled {
		status = http.StatusAccepted
	}
	writeData(w, status, res)
}

func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *Handler) recipientStats(w http.ResponseWriter, r *http.Request) {
	window := defaultWindowDays
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || validator.Apply(validator.Range("window_days", n, 1, maxWindowDays)) != nil {
			h.writeError(w, r, errBadWindow)
			return
		}
		window = n
	}

	stats, err := h.svc.GetDeliveryStats(r.Context(), chi.URLParam(r, "id"), window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadBody, err)
	}
	return nil
}

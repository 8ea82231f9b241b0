package order_api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"wifihub/internal/auth"
	"wifihub/internal/logger"
	"wifihub/internal/middleware"
)

type RouterConfig struct {
	Handler      *Handler
	SSE          *SSEHandler
	Tokens       *auth.TokenManager
	Limiter      *middleware.RateLimiter
	AllowOrigins []string
	Logger       *logger.Logger
}

// NewRouter wires every public endpoint of the service.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		MaxAge:         3600,
	})
	r.Use(c.Handler)
	r.Use(requestLogger(cfg.Logger))

	r.Get("/healthz", Health)

	// Gateway retries on anything but 2xx, so notifications bypass the limiter.
	r.Post("/api/payment/notification", cfg.Handler.PaymentNotification)

	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Tokens, cfg.Logger))

			r.Route("/api", func(r chi.Router) {
				r.Post("/", cfg.Handler.ServeAction)
				r.MethodNotAllowed(cfg.Handler.MethodNotAllowed)

				r.With(auth.RequireUser).Get("/vouchers/{code}/qr", cfg.Handler.VoucherQR)
				if cfg.SSE != nil {
					r.With(auth.RequireUser).Get("/orders/events", cfg.SSE.HandleOrderEvents)
				}
			})
		})
	})
	cfg.Logger.Info("ROUTER", "Actions on POST /api: "+strings.Join(cfg.Handler.Actions(), ", "))
	cfg.Logger.Info("ROUTER", "Routes registered: POST /api, POST /api/payment/notification, GET /api/vouchers/{code}/qr, GET /api/orders/events")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if r.URL.Path != "/api" && r.URL.Path != "/api/" {
				log.LogAPI(r.Method, r.URL.Path, rec.status, time.Since(start))
			}
		})
	}
}

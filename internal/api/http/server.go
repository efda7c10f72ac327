// Package httpapi exposes the analytics backend as a JSON REST API.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/bizense/bizense-manager/internal/apisrv/auth"
	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/bizense/bizense-manager/internal/ingest"
	"github.com/bizense/bizense-manager/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
)

// Config is the configuration for the http server
type Config struct {
	Port           string   `mapstructure:"port"`
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RequestLimit   int      `mapstructure:"request_limit"`
}

// Server is the http server
type Server struct {
	hs          *http.Server
	c           *Config
	rep         dependency.Repository
	authSrv     *auth.Server
	proc        *ingest.Processor
	fees        metrics.Fees
	maxFileSize int64
	done        chan struct{}
}

// New creates a new server
func New(c *Config, rep dependency.Repository, authSrv *auth.Server, proc *ingest.Processor, fees metrics.Fees, maxFileSize int64) *Server {
	return &Server{
		c:           c,
		rep:         rep,
		authSrv:     authSrv,
		proc:        proc,
		fees:        fees,
		maxFileSize: maxFileSize,
		done:        make(chan struct{}),
	}
}

// Done returns a channel that is closed when the server exits
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.c.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	limit := s.c.RequestLimit
	if limit <= 0 {
		limit = 100
	}
	r.Use(httprate.Limit(
		limit,
		time.Minute,
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	))

	r.Get("/", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/users", s.handleCreateUser)
			r.Delete("/users", s.handleDeleteUser)
		})

		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(s.authSrv.JwtAuth))
			r.Use(s.authenticator)

			r.Post("/upload", s.handleUpload)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", s.handleListProducts)
				r.Post("/", s.handleAddProduct)
				r.Put("/bulk-delete", s.handleBulkDeleteProducts)
				r.Put("/bulk-update", s.handleBulkUpdateProducts)
				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", s.handleUpdateProduct)
					r.Delete("/", s.handleDeleteProduct)
					r.Get("/detail", s.handleProductDetail)
				})
			})

			r.Get("/dashboard", s.handleDashboard)

			r.Get("/upload-history", s.handleUploadHistory)
			r.Delete("/upload-history/{id}", s.handleDeleteUpload)

			r.Route("/product-metrics/{productId}", func(r chi.Router) {
				r.Get("/", s.handleGetProductMetrics)
				r.Put("/", s.handleUpdateProductMetrics)
				r.Post("/manual-update", s.handleManualUpdate)
			})
		})
	})

	return r
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	s.hs = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.c.Address, s.c.Port),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(s.done)
		slog.Default().InfoContext(ctx, "http server listening",
			slog.String("addr", s.hs.Addr),
		)
		if err := s.hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Default().ErrorContext(ctx, "http server exited",
				slog.String("err", err.Error()),
			)
		}
	}()

	return nil
}

// Stop shuts the server down draining in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.hs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.hs.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rep.Ping(r.Context()); err != nil {
		render.Render(w, r, ErrInternalServerError(fmt.Errorf("database unreachable")))
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

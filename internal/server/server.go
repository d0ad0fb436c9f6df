// Package server exposes the marketplace over HTTP. Handlers translate
// between the wire envelope and engine calls; no business rules live
// here.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"gighub/internal/blob"
	"gighub/internal/engine"
	"gighub/internal/engine/policy"
	"gighub/internal/lifecycle"
	"gighub/internal/payments"
	"gighub/internal/repo"
)

type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger

	// UploadsRoot, when set, is served read-only at UploadsBase.
	UploadsRoot string
	UploadsBase string
}

type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type apiError struct {
	status int
	ErrorBody
}

func (e *apiError) Error() string {
	return e.Message
}

func (e *apiError) GetStatus() int {
	return e.status
}

// New builds the HTTP handler: auth middleware, the huma API, the
// multipart submit route and the static uploads mount.
func New(cfg Config) (http.Handler, error) {
	if cfg.BasePath == "" {
		cfg.BasePath = "/api/v1"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}

	// All failures share the {success:false, message} envelope,
	// including huma's own validation errors.
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		if len(errs) > 0 {
			var details []string
			for _, e := range errs {
				details = append(details, e.Error())
			}
			message = message + ": " + strings.Join(details, "; ")
		}
		return &apiError{status: status, ErrorBody: ErrorBody{Success: false, Message: message}}
	}

	router := chi.NewMux()
	router.Use(requestLogger(logger))

	public := []string{"/healthz", "/docs", "/openapi"}
	if cfg.UploadsRoot != "" {
		public = append(public, cfg.UploadsBase)
	}
	authMW := newAuthMiddleware(cfg.Auth, cfg.Engine.Repo)
	router.Use(func(next http.Handler) http.Handler {
		protected := authMW(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			for _, p := range public {
				if req.URL.Path == p || strings.HasPrefix(req.URL.Path, p+"/") || strings.HasPrefix(req.URL.Path, p+".") {
					next.ServeHTTP(w, req)
					return
				}
			}
			protected.ServeHTTP(w, req)
		})
	})

	if cfg.UploadsRoot != "" {
		router.Handle(cfg.UploadsBase+"/*", http.StripPrefix(cfg.UploadsBase+"/", http.FileServer(http.Dir(cfg.UploadsRoot))))
	}

	humaCfg := huma.DefaultConfig("Gighub API", "1.0.0")
	api := humachi.New(router, humaCfg)

	registerHealth(api)
	registerJobs(api, cfg.BasePath, cfg.Engine)
	registerPayments(api, cfg.BasePath, cfg.Engine)
	registerAdmin(api, cfg.BasePath, cfg.Engine)

	router.Post(cfg.BasePath+"/jobs/{jobID}/submit", submitWorkHandler(cfg.Engine))

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			logger.Info("request", "method", req.Method, "path", req.URL.Path, "duration", time.Since(start))
		})
	}
}

// handleError maps engine errors onto the wire status codes.
func handleError(err error) error {
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return huma.Error400BadRequest(ve.Msg)
	}
	var fe policy.ForbiddenError
	if errors.As(err, &fe) {
		return huma.Error403Forbidden(fe.Error())
	}
	if errors.Is(err, repo.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return huma.Error409Conflict(ce.Msg)
	}
	var te lifecycle.TransitionError
	if errors.As(err, &te) {
		return huma.Error409Conflict(te.Error())
	}
	var pe payments.UpstreamError
	if errors.As(err, &pe) {
		return huma.Error502BadGateway("payment processor unavailable")
	}
	var be blob.UpstreamError
	if errors.As(err, &be) {
		return huma.Error502BadGateway("file storage unavailable")
	}
	return huma.Error500InternalServerError("internal error")
}

func actorFrom(ctx context.Context) (policy.Actor, error) {
	actor, ok := principalFrom(ctx)
	if !ok {
		return policy.Actor{}, huma.Error401Unauthorized("missing credentials")
	}
	return actor, nil
}

type healthBody struct {
	Success bool `json:"success"`
	Data    struct {
		Status string `json:"status"`
	} `json:"data"`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct{ Body healthBody }, error) {
		out := &struct{ Body healthBody }{}
		out.Body.Success = true
		out.Body.Data.Status = "ok"
		return out, nil
	})
}

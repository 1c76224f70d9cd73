package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/juridia/caseflow/internal/cases"
	"github.com/juridia/caseflow/internal/config"
	"github.com/juridia/caseflow/internal/observability"
	"github.com/juridia/caseflow/internal/workflow"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Coordinator *cases.Coordinator
	Templates   *workflow.TemplateService
	Ready       func() error
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// tenant-context middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "route not found")
	})

	// Public routes.
	r.Get("/health", handleHealth)
	r.Get("/ready", handleReady(deps.Ready))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler())
	}

	// Tenant-scoped routes.
	r.Group(func(r chi.Router) {
		r.Use(TenantContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))
		r.Use(deps.Metrics.MetricsMiddleware)

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", handleCaseCreate(deps.Coordinator))
			r.Get("/", handleCaseList(deps.Coordinator))
			r.Get("/{caseID}", handleCaseGet(deps.Coordinator))
			r.Patch("/{caseID}", handleCaseUpdate(deps.Coordinator))
			r.Delete("/{caseID}", handleCaseDelete(deps.Coordinator))
			r.Get("/{caseID}/tasks", handleTaskList(deps.Coordinator))
			r.Post("/{caseID}/tasks", handleTaskCreate(deps.Coordinator))
		})

		r.Patch("/tasks/{taskID}/status", handleTaskStatus(deps.Coordinator))

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", handleTemplateList(deps.Templates))
			r.Post("/", handleTemplateCreate(deps.Templates))
			r.Get("/{templateID}", handleTemplateGet(deps.Templates))
			r.Patch("/{templateID}", handleTemplateUpdate(deps.Templates))
			r.Delete("/{templateID}", handleTemplateDelete(deps.Templates))
			r.Post("/{templateID}/toggle", handleTemplateToggle(deps.Templates))
		})

		r.Get("/reports/progress", handleProgressReport(deps.Coordinator))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"reason": err.Error(),
				})
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

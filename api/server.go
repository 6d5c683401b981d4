/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logger:     zap request logging (level by status)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Tracing:    W3C trace context extraction
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/persons/*        Roster management
  /api/params           Shared parameters
  /api/roles            Role catalog
  /api/calculation      Bonus calculation
  /api/report.xlsx      Excel export
  /api/scenarios/*      Demo rosters
  /healthz, /metrics    Liveness, Prometheus
  /*                    Static files (frontend)

STATIC FILE SERVING:
  Serves a built frontend from RouterOptions.StaticDir when it exists.
  Falls back to index.html for client-side routing.

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/trouble2112/Bouns-tools/observability"
)

// RouterOptions configures the parts of the router that vary by deployment.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty means the local dev origins.
	AllowedOrigins []string
	// StaticDir holds a built frontend. Empty or missing disables it.
	StaticDir string
}

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(observability.ZapLoggerMiddleware(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(observability.TracingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Traceparent"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Person routes
		r.Route("/persons", func(r chi.Router) {
			r.Get("/", h.ListPersons)
			r.Post("/", h.CreatePerson)
			r.Delete("/", h.DeleteAllPersons)
			r.Get("/{id}", h.GetPerson)
			r.Put("/{id}", h.UpdatePerson)
			r.Delete("/{id}", h.DeletePerson)
			r.Get("/{id}/breakdown", h.GetPersonBreakdown)
		})

		// Parameter routes
		r.Get("/params", h.GetParameters)
		r.Put("/params", h.SaveParameters)
		r.Post("/params", h.SaveParameters)

		// Calculation routes
		r.Get("/roles", h.ListRoles)
		r.Get("/calculation", h.GetCalculation)
		r.Get("/report.xlsx", h.GetReport)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetScenario)
		})
	})

	if staticDir := opts.StaticDir; staticDir != "" && dirExists(staticDir) {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))

			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(indexPage))
		})
	}

	return r
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

const indexPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>销售奖金计算</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>销售奖金计算 API</h1>
<p>No frontend is configured. Set <code>static_dir</code> to serve one.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/persons">/api/persons</a> - List persons</li>
<li><a href="/api/params">/api/params</a> - Current parameters</li>
<li><a href="/api/roles">/api/roles</a> - Role catalog</li>
<li><a href="/api/calculation">/api/calculation</a> - Calculate bonuses</li>
<li><a href="/api/report.xlsx">/api/report.xlsx</a> - Download Excel report</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo rosters</li>
</ul>
</body>
</html>`

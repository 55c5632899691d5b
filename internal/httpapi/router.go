package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"montage/internal/httpapi/handlers"
	"montage/internal/httpkit"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/middleware"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Deps struct {
	Handlers       handlers.Deps
	AllowedOrigins []string
	Log            *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	if d.Handlers.Log == nil {
		d.Handlers.Log = log
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	origins := httpkit.NormalizeList(d.AllowedOrigins)
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(d.Handlers)
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- RENDER ----
	r.Post("/render", wrap(h.PostRender))
	r.Get("/render", wrap(h.ListRenders))
	r.Get("/render/{id}", wrap(h.GetRender))
	r.Get("/render/{id}/output", wrap(h.GetRenderOutput))

	// ---- TEMPLATES ----
	r.Post("/templates", wrap(h.PostTemplate))
	r.Get("/templates", wrap(h.ListTemplates))
	r.Get("/templates/{templateId}", wrap(h.GetTemplate))
	r.Delete("/templates/{templateId}", wrap(h.DeleteTemplate))

	// ---- ASSETS ----
	r.Post("/assets", wrap(h.PostAsset))
	r.Get("/assets/*", wrap(h.StreamAsset))
	r.Delete("/assets/*", wrap(h.DeleteAsset))

	return r
}

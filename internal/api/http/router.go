package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/shortyhq/shorty/internal/models"
	"github.com/shortyhq/shorty/internal/service"
)

// LinkService is the boundary surface the HTTP layer consumes. It is
// deliberately transport-agnostic: the resolver contract is a plain
// function of (code, clientKey, meta), not of any framework request type.
type LinkService interface {
	CreateLink(ctx context.Context, params service.CreateLinkParams) (*models.Link, error)
	Resolve(ctx context.Context, code, clientKey string, meta service.ClickMeta) (string, error)
	Remove(ctx context.Context, code, owner string) error
	Stats(ctx context.Context, code string) (*models.Link, error)
	List(ctx context.Context, owner string, page, pageSize int) ([]models.Link, int64, error)
}

// Pinger is a readiness probe for an external dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(logger *httplog.Logger, linkSvc LinkService, checks map[string]Pinger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth(checks))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*"},
			AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept", "X-Owner"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))
		r.Use(middleware.AllowContentType("application/json"))

		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/links", func(r chi.Router) {
			r.Post("/", handleCreateLink(linkSvc, validate))
			r.Get("/", handleListLinks(linkSvc))

			r.Route("/{code}", func(r chi.Router) {
				r.Delete("/", handleRemoveLink(linkSvc))
				r.Get("/stats", handleLinkStats(linkSvc))
			})
		})
	})

	// The redirect path sits at the root so short links stay short.
	r.Get("/{code}", handleRedirect(linkSvc))

	return r
}

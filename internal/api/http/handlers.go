package http

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/shortyhq/shorty/internal/database"
	"github.com/shortyhq/shorty/internal/models"
	"github.com/shortyhq/shorty/internal/service"
	"github.com/shortyhq/shorty/pkg/response"
)

const (
	ownerHeader = "X-Owner"

	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100

	healthCheckTimeout = 2 * time.Second
)

type createLinkRequest struct {
	URL       string     `json:"url" validate:"required,url"`
	Alias     string     `json:"alias,omitempty" validate:"omitempty,alphanum,min=4,max=12"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type linkResponse struct {
	ID         int64      `json:"id"`
	Code       string     `json:"code"`
	URL        string     `json:"url"`
	Owner      string     `json:"owner,omitempty"`
	ClickCount int64      `json:"click_count"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func toLinkResponse(link *models.Link) linkResponse {
	return linkResponse{
		ID:         link.ID,
		Code:       link.Code,
		URL:        link.TargetURL,
		Owner:      link.Owner,
		ClickCount: link.ClickCount,
		CreatedAt:  link.CreatedAt,
		ExpiresAt:  link.ExpiresAt,
	}
}

type linkListResponse struct {
	Links    []linkResponse `json:"links"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int64          `json:"total"`
}

// clientKey identifies the caller for rate limiting. Authenticated owners
// are keyed by owner so a shared NAT does not starve them; everyone else is
// keyed by IP.
func clientKey(r *http.Request) string {
	if owner := r.Header.Get(ownerHeader); owner != "" {
		return owner
	}
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func retryAfterSeconds(retryAfter time.Duration) string {
	secs := int64(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

func renderRateLimited(w http.ResponseWriter, r *http.Request, rle *service.RateLimitError) {
	w.Header().Set("Retry-After", retryAfterSeconds(rle.RetryAfter))
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, response.RateLimitedResponse(rle.RetryAfter))
}

func handleCreateLink(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLinkRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		link, err := svc.CreateLink(r.Context(), service.CreateLinkParams{
			TargetURL: req.URL,
			Owner:     r.Header.Get(ownerHeader),
			Alias:     req.Alias,
			ExpiresAt: req.ExpiresAt,
			ClientKey: clientKey(r),
		})
		if err != nil {
			var rle *service.RateLimitError

			switch {
			case errors.As(err, &rle):
				renderRateLimited(w, r, rle)
			case errors.Is(err, service.ErrInvalidTarget):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
			case errors.Is(err, service.ErrInvalidAlias):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidAliasResponse)
			case errors.Is(err, service.ErrAliasTaken):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.AliasTakenResponse)
			case errors.Is(err, service.ErrCodeSpaceExhausted):
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, response.CodeSpaceExhaustedResponse)
			default:
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}

			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse("Link created successfully.", toLinkResponse(link)))
	}
}

func handleRedirect(svc LinkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		target, err := svc.Resolve(r.Context(), code, clientIP(r), service.ClickMeta{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
		})
		if err != nil {
			var rle *service.RateLimitError

			switch {
			case errors.As(err, &rle):
				renderRateLimited(w, r, rle)
			case errors.Is(err, database.ErrLinkNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, service.ErrLinkExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.ResourceGoneResponse)
			default:
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}

			return
		}

		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	}
}

func handleRemoveLink(svc LinkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(ownerHeader)
		if owner == "" {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.ForbiddenResponse)
			return
		}

		code := chi.URLParam(r, "code")

		if err := svc.Remove(r.Context(), code, owner); err != nil {
			switch {
			case errors.Is(err, database.ErrLinkNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, service.ErrNotOwner):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.ForbiddenResponse)
			default:
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}

			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse("Link deleted successfully."))
	}
}

func handleLinkStats(svc LinkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		link, err := svc.Stats(r.Context(), code)
		if err != nil {
			switch {
			case errors.Is(err, database.ErrLinkNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			default:
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}

			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse("Link stats retrieved successfully.", toLinkResponse(link)))
	}
}

func handleListLinks(svc LinkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(ownerHeader)
		if owner == "" {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.ForbiddenResponse)
			return
		}

		page := queryInt(r, "page", defaultPage)
		if page < 1 {
			page = defaultPage
		}

		pageSize := queryInt(r, "page_size", defaultPageSize)
		if pageSize < 1 {
			pageSize = defaultPageSize
		}
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		links, total, err := svc.List(r.Context(), owner, page, pageSize)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		resp := linkListResponse{
			Links:    make([]linkResponse, 0, len(links)),
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		}
		for i := range links {
			resp.Links = append(resp.Links, toLinkResponse(&links[i]))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse("Links retrieved successfully.", resp))
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.SuccessResponse("pong"))
}

func handleHealth(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))

		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check.Ping(ctx)
			cancel()

			if err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}

			results[name] = "ok"
		}

		render.Status(r, status)

		if status != http.StatusOK {
			render.JSON(w, r, Health{Status: "degraded", Checks: results})
			return
		}

		render.JSON(w, r, Health{Status: "ok", Checks: results})
	}
}

// Health reports the liveness of the service and its dependencies.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

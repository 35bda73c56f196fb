package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shortyhq/shorty/internal/cache"
	"github.com/shortyhq/shorty/internal/database"
	"github.com/shortyhq/shorty/internal/models"
	"github.com/shortyhq/shorty/internal/ratelimit"
)

// LinkRepository defines the persistent store contract for links at the
// business logic layer. The store must enforce uniqueness on the short code.
type LinkRepository interface {
	// Create inserts a new link. Returns database.ErrLinkExists when the
	// short code is already taken.
	Create(ctx context.Context, link *models.Link) (*models.Link, error)

	// GetByCode retrieves a link by its short code without side effects.
	// Returns database.ErrLinkNotFound when no such link exists.
	GetByCode(ctx context.Context, code string) (*models.Link, error)

	// CodeExists reports whether a short code is already in use.
	CodeExists(ctx context.Context, code string) (bool, error)

	// Delete removes a link by its short code.
	Delete(ctx context.Context, code string) error

	// ListByOwner returns a page of an owner's links and the total count.
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]models.Link, int64, error)
}

// RedirectCache is the cache-aside layer in front of the link store. All
// methods may fail with cache.ErrUnavailable, which the service treats as
// a miss or a logged no-op.
type RedirectCache interface {
	Lookup(ctx context.Context, code string) (*cache.Entry, error)
	Put(ctx context.Context, code, targetURL string, expiresAt *time.Time) error
	Invalidate(ctx context.Context, code string) error
}

// RateLimiter admits or denies requests per client key and endpoint class.
type RateLimiter interface {
	Admit(ctx context.Context, clientKey string, class ratelimit.Class, now time.Time) (ratelimit.Decision, error)
}

// ClickSink accepts click events for asynchronous best-effort delivery.
type ClickSink interface {
	Emit(event models.ClickEvent)
}

// LinkService implements the core link lifecycle: code generation with
// collision avoidance, the cache-aside redirect path, and rate limited
// admission.
type LinkService struct {
	repo       LinkRepository
	cache      RedirectCache
	limiter    RateLimiter
	sink       ClickSink
	gen        *CodeGenerator
	maxRetries int
	logger     *slog.Logger
}

func NewLinkService(
	repo LinkRepository,
	redirectCache RedirectCache,
	limiter RateLimiter,
	sink ClickSink,
	codeLength, maxRetries int,
	logger *slog.Logger,
) *LinkService {
	return &LinkService{
		repo:       repo,
		cache:      redirectCache,
		limiter:    limiter,
		sink:       sink,
		gen:        NewCodeGenerator(codeLength, maxRetries),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// CreateLinkParams describes a link creation request.
type CreateLinkParams struct {
	TargetURL string
	Owner     string
	Alias     string
	ExpiresAt *time.Time
	// ClientKey identifies the caller for rate limiting: the owner when
	// authenticated, the client IP otherwise.
	ClientKey string
}

// CreateLink shortens a target URL. With an alias, the alias is claimed or
// the call fails with ErrAliasTaken; without one, a unique code is generated
// with bounded retries. An insert-time uniqueness violation is treated
// exactly like a pre-check collision: retried for generated codes, fatal
// for aliases.
func (s *LinkService) CreateLink(ctx context.Context, params CreateLinkParams) (*models.Link, error) {
	const op = "service.LinkService.CreateLink"

	if err := s.admit(ctx, params.ClientKey, ratelimit.ClassCreate); err != nil {
		return nil, err
	}

	if !validTargetURL(params.TargetURL) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTarget)
	}

	if params.Alias != "" {
		return s.createWithAlias(ctx, params)
	}

	for i := 0; i < s.maxRetries; i++ {
		code, err := s.gen.Generate(ctx, s.repo.CodeExists)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		link, err := s.repo.Create(ctx, &models.Link{
			Code:      code,
			TargetURL: params.TargetURL,
			Owner:     params.Owner,
			ExpiresAt: params.ExpiresAt,
		})
		if err != nil {
			if errors.Is(err, database.ErrLinkExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		return link, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrCodeSpaceExhausted)
}

func (s *LinkService) createWithAlias(ctx context.Context, params CreateLinkParams) (*models.Link, error) {
	const op = "service.LinkService.createWithAlias"

	if !ValidCode(params.Alias) || reservedAlias(params.Alias) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAlias)
	}

	taken, err := s.repo.CodeExists(ctx, params.Alias)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to check alias existence: %w", op, err)
	}
	if taken {
		return nil, fmt.Errorf("%s: %w", op, ErrAliasTaken)
	}

	link, err := s.repo.Create(ctx, &models.Link{
		Code:      params.Alias,
		TargetURL: params.TargetURL,
		Owner:     params.Owner,
		ExpiresAt: params.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, database.ErrLinkExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrAliasTaken)
		}

		return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
	}

	return link, nil
}

// ClickMeta carries the client metadata recorded with each resolved
// redirect.
type ClickMeta struct {
	IPAddress string
	UserAgent string
	Referer   string
}

// Resolve turns a short code into its redirect target. The request is rate
// limited per client IP, served from the cache when possible, and falls
// back to the persistent store on a miss. A successful resolve emits a
// click event as a fire-and-forget side effect; click accounting never
// blocks or fails the redirect.
func (s *LinkService) Resolve(ctx context.Context, code, clientKey string, meta ClickMeta) (string, error) {
	const op = "service.LinkService.Resolve"

	now := time.Now()

	if err := s.admit(ctx, clientKey, ratelimit.ClassRedirect); err != nil {
		return "", err
	}

	entry, err := s.cache.Lookup(ctx, code)
	if err == nil {
		// Cache entries can outlive an expiry boundary within their TTL,
		// so every hit is expiry-checked before being served. An expired
		// hit falls through to the store, which stays authoritative.
		if !entry.Expired(now) {
			s.emitClick(code, now, meta)
			return entry.TargetURL, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("redirect cache lookup failed", slog.String("code", code), slog.Any("err", err))
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if link.Expired(now) {
		return "", fmt.Errorf("%s: %w", op, ErrLinkExpired)
	}

	if err := s.cache.Put(ctx, link.Code, link.TargetURL, link.ExpiresAt); err != nil {
		s.logger.Warn("failed to populate redirect cache", slog.String("code", code), slog.Any("err", err))
	}

	s.emitClick(code, now, meta)

	return link.TargetURL, nil
}

// Remove deletes a link owned by owner. The cache entry is invalidated
// before the delete is acknowledged, so an immediate resolve after Remove
// returns can't serve the old target from this node's cache path.
func (s *LinkService) Remove(ctx context.Context, code, owner string) error {
	const op = "service.LinkService.Remove"

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if link.Owner != owner {
		return fmt.Errorf("%s: %w", op, ErrNotOwner)
	}

	if err := s.repo.Delete(ctx, code); err != nil {
		return fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	if err := s.cache.Invalidate(ctx, code); err != nil {
		return fmt.Errorf("%s: failed to invalidate cache entry: %w", op, err)
	}

	return nil
}

// Stats retrieves a link's metadata and click count without redirecting.
func (s *LinkService) Stats(ctx context.Context, code string) (*models.Link, error) {
	const op = "service.LinkService.Stats"

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link stats: %w", op, err)
	}

	return link, nil
}

// List returns a page of an owner's links together with the total count.
func (s *LinkService) List(ctx context.Context, owner string, page, pageSize int) ([]models.Link, int64, error) {
	const op = "service.LinkService.List"

	links, total, err := s.repo.ListByOwner(ctx, owner, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, total, nil
}

func (s *LinkService) admit(ctx context.Context, clientKey string, class ratelimit.Class) error {
	const op = "service.LinkService.admit"

	decision, err := s.limiter.Admit(ctx, clientKey, class, time.Now())
	if err != nil {
		// The decision already reflects the configured fail-open or
		// fail-closed policy; the error is only logged.
		s.logger.Warn("rate limiter check failed",
			slog.String("class", string(class)), slog.Any("err", err))
	}

	if !decision.Allowed {
		retryAfter := decision.RetryAfter
		if retryAfter <= 0 {
			retryAfter = time.Second
		}

		return fmt.Errorf("%s: %w", op, &RateLimitError{RetryAfter: retryAfter})
	}

	return nil
}

func (s *LinkService) emitClick(code string, now time.Time, meta ClickMeta) {
	s.sink.Emit(models.ClickEvent{
		ID:         uuid.NewString(),
		Code:       code,
		OccurredAt: now,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Referer:    meta.Referer,
	})
}

func validTargetURL(target string) bool {
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

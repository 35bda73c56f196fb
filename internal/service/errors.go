package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAliasTaken is returned when a custom alias is already in use.
	// Unlike generated codes, alias collisions are never retried.
	ErrAliasTaken = errors.New("alias already taken")
	// ErrCodeSpaceExhausted is returned when the maximum number of retries
	// for generating a unique short code is exceeded.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")
	// ErrInvalidAlias is returned when a custom alias doesn't satisfy the
	// short code format or is reserved.
	ErrInvalidAlias = errors.New("invalid alias")
	// ErrInvalidTarget is returned when the target is not an absolute
	// http(s) URL.
	ErrInvalidTarget = errors.New("invalid target url")
	// ErrLinkExpired is returned when a link exists but its expiry lies in
	// the past. Callers can distinguish it from "never existed".
	ErrLinkExpired = errors.New("link expired")
	// ErrNotOwner is returned when a principal tries to delete a link it
	// doesn't own.
	ErrNotOwner = errors.New("link owned by another principal")
)

// RateLimitError is returned when a request exceeds its endpoint class
// budget. RetryAfter always carries a positive retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

package service

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// codeAlphabet is the base62 alphabet used for all short codes.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	// MinCodeLength and MaxCodeLength bound both generated codes and
	// user-supplied aliases.
	MinCodeLength = 4
	MaxCodeLength = 12
)

// reservedAliases can't be claimed as custom aliases because they collide
// with routes served by the service itself.
var reservedAliases = map[string]struct{}{
	"api":     {},
	"healthz": {},
	"ping":    {},
	"stats":   {},
	"links":   {},
}

// ExistsFunc probes the persistent store for a short code.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// CodeGenerator produces random base62 short codes of a fixed length,
// consulting an injected existence probe to avoid collisions. The probe is
// only an optimization: the store's uniqueness constraint remains the final
// arbiter for two generate calls racing to insert the same code.
type CodeGenerator struct {
	length     int
	maxRetries int
}

func NewCodeGenerator(length, maxRetries int) *CodeGenerator {
	if length < MinCodeLength {
		length = MinCodeLength
	}
	if length > MaxCodeLength {
		length = MaxCodeLength
	}

	return &CodeGenerator{
		length:     length,
		maxRetries: maxRetries,
	}
}

// Generate returns a candidate code that the probe reports as unused. It
// regenerates on collision up to the retry bound and fails with
// ErrCodeSpaceExhausted beyond it.
func (g *CodeGenerator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	const op = "service.CodeGenerator.Generate"

	for i := 0; i < g.maxRetries; i++ {
		code, err := gonanoid.Generate(codeAlphabet, g.length)
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check short code existence: %w", op, err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrCodeSpaceExhausted)
}

// ValidCode reports whether code satisfies the short code format: 4 to 12
// characters from the base62 alphabet.
func ValidCode(code string) bool {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return false
	}

	for _, c := range code {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}

	return true
}

func reservedAlias(alias string) bool {
	_, ok := reservedAliases[alias]
	return ok
}

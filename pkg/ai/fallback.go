package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"email-analyzer-backend/pkg/logger"
)

// FallbackGenerator tries the primary provider and falls back to the secondary one
// on connection, quota or other provider errors. Safety blocks are final.
type FallbackGenerator struct {
	primary   Generator
	secondary Generator
}

func NewFallbackGenerator(primary, secondary Generator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, secondary: secondary}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

func (f *FallbackGenerator) Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	log := logger.For("ai")

	result, primaryErr := f.primary.Generate(ctx, prompt, cfg)
	if primaryErr == nil {
		return result, nil
	}
	if errors.Is(primaryErr, ErrBlocked) || f.secondary == nil {
		return "", primaryErr
	}

	switch {
	case isQuotaError(primaryErr):
		log.WithError(primaryErr).Warn("primary provider quota exhausted, falling back")
	case isConnectionError(primaryErr):
		log.WithError(primaryErr).Warn("primary provider unreachable, falling back")
	default:
		log.WithError(primaryErr).Warn("primary provider failed, falling back")
	}

	result, secondaryErr := f.secondary.Generate(ctx, prompt, cfg)
	if secondaryErr == nil {
		return result, nil
	}

	// Surface the rate limit so the caller backs off instead of hammering both providers.
	if rl, ok := AsRateLimit(primaryErr); ok {
		return "", rl
	}
	if rl, ok := AsRateLimit(secondaryErr); ok {
		return "", rl
	}
	return "", fmt.Errorf("all providers failed: %v; %w", primaryErr, secondaryErr)
}

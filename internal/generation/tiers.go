// Package generation implements the orchestration layer: outline generation
// with tier fallback, the per-slide asset lifecycle with bounded retry, and the
// sequential batch scheduler over a deck's missing assets.
package generation

import (
	"context"
	"errors"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"go.uber.org/zap"
)

var errNoTiers = errors.New("generation: at least one model tier is required")

// ModelClient is the slice of the gateway the generation layer depends on.
type ModelClient interface {
	Complete(ctx context.Context, cred gateway.Credential, req gateway.CompletionRequest) (string, error)
	GenerateImage(ctx context.Context, cred gateway.Credential, req gateway.ImageRequest) (string, error)
}

// completeWithFallback issues the same prompt against each tier in order until
// accept consumes a response without error. Each tier gets exactly one attempt.
// A configuration error aborts immediately: a bad credential will not get
// better on a cheaper model. Any other failure, including a response accept
// rejects, moves on to the next tier; when all tiers are spent the last cause
// is wrapped in a terminal exhausted error.
func completeWithFallback(
	ctx context.Context,
	client ModelClient,
	tiers []gateway.Tier,
	cred gateway.Credential,
	op string,
	prompt string,
	accept func(raw string) error,
	logger *zap.Logger,
) error {
	if len(tiers) == 0 {
		return gateway.NewConfigurationError(op, errNoTiers)
	}

	var lastErr error
	for _, tier := range tiers {
		raw, err := client.Complete(ctx, cred, gateway.CompletionRequest{Model: tier.Model, Prompt: prompt})
		if err != nil {
			if gateway.IsConfiguration(err) {
				return err
			}
			logger.Warn("model tier failed",
				zap.String("op", op),
				zap.String("tier", tier.Name),
				zap.Error(err))
			lastErr = err
			continue
		}
		if err := accept(raw); err != nil {
			logger.Warn("model response rejected",
				zap.String("op", op),
				zap.String("tier", tier.Name),
				zap.Error(err))
			lastErr = gateway.NewValidationError(op, err)
			continue
		}
		return nil
	}
	return gateway.NewExhaustedError(op, lastErr)
}

// sleepFunc waits for the given duration unless the context ends first.
// Injected so tests run without real delays.
type sleepFunc func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

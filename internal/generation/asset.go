package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	"go.uber.org/zap"
)

const (
	opAsset = "generation.asset"

	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 2 * time.Second
)

var (
	errMissingImageModel = errors.New("generation: image model is required")
	// ErrUnknownMode indicates an asset mode outside the supported set.
	ErrUnknownMode = errors.New("generation: unknown asset mode")
)

// AssetMode selects what kind of visual is generated for a slide.
type AssetMode string

const (
	// ModeFullSlide renders a complete slide: background art plus the record's
	// literal text baked into the image.
	ModeFullSlide AssetMode = "full"
	// ModeDiagram renders a standalone chart or flowchart derived from the
	// record's title and body points.
	ModeDiagram AssetMode = "diagram"
)

// NewAssetMode validates a raw mode tag, defaulting empty input to full-slide.
func NewAssetMode(raw string) (AssetMode, error) {
	switch AssetMode(raw) {
	case ModeFullSlide, "":
		return ModeFullSlide, nil
	case ModeDiagram:
		return ModeDiagram, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
}

// AssetGeneratorConfig configures per-slide asset generation.
type AssetGeneratorConfig struct {
	Client ModelClient
	// ImageModel is the single fixed tier used for all asset calls. There is
	// deliberately no fallback: the cheaper tier cannot render slide text.
	ImageModel string
	// MaxAttempts bounds total attempts per call, retries included.
	MaxAttempts int
	// RetryBaseDelay scales the linear wait before retry k: k * base.
	RetryBaseDelay time.Duration
	Sleep          sleepFunc
	Logger         *zap.Logger
}

// AssetGenerator runs the per-slide asset lifecycle against a deck store:
// mark pending, call the image model with bounded retry, resolve or fail.
type AssetGenerator struct {
	client      ModelClient
	imageModel  string
	maxAttempts int
	retryBase   time.Duration
	sleep       sleepFunc
	logger      *zap.Logger
}

// NewAssetGenerator constructs an AssetGenerator.
func NewAssetGenerator(cfg AssetGeneratorConfig) (*AssetGenerator, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	if cfg.ImageModel == "" {
		return nil, errMissingImageModel
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = defaultRetryBaseDelay
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = contextSleep
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetGenerator{
		client:      cfg.Client,
		imageModel:  cfg.ImageModel,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
		sleep:       sleep,
		logger:      logger,
	}, nil
}

// AssetRequest describes one asset generation call.
type AssetRequest struct {
	SlideID string
	Mode    AssetMode
	// Prompt overrides the record's stored asset prompt (full-slide mode only).
	Prompt string
	// Instruction is an optional user note appended to the full-slide prompt.
	Instruction string
}

// Generate produces one asset for the targeted slide and applies the result to
// the deck store keyed by slide id. The pending flag is set before the first
// network call; on success the layout is forced to full-image (full-slide mode)
// or center (diagram mode); on failure the pending flag is cleared and any
// prior asset stays untouched. If the slide was deleted while the call was in
// flight, resolution is a silent no-op.
func (g *AssetGenerator) Generate(ctx context.Context, cred gateway.Credential, deck *slides.Deck, req AssetRequest) (slides.SlideRecord, error) {
	record, ok := deck.Store.Get(req.SlideID)
	if !ok {
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}

	if req.Mode == "" {
		req.Mode = ModeFullSlide
	}
	if req.Prompt != "" && req.Mode == ModeFullSlide {
		updated, ok := deck.Store.Update(req.SlideID, func(r slides.SlideRecord) slides.SlideRecord {
			r.AssetPrompt = req.Prompt
			return r
		})
		if !ok {
			return slides.SlideRecord{}, slides.ErrSlideNotFound
		}
		record = updated
	}

	var prompt string
	var resolvedLayout slides.SlideLayout
	switch req.Mode {
	case ModeFullSlide:
		prompt = buildFullSlidePrompt(record, deck.Theme(), req.Instruction)
		resolvedLayout = slides.LayoutFullImage
	case ModeDiagram:
		prompt = buildDiagramPrompt(record, deck.Theme())
		resolvedLayout = slides.LayoutCenter
	default:
		return slides.SlideRecord{}, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	// Readers must never observe "not pending" for a slide with an in-flight
	// call, so the flag goes up before any network traffic.
	deck.Store.MarkPending(req.SlideID)

	assetURL, err := g.callWithRetry(ctx, cred, prompt)
	if err != nil {
		deck.Store.FailAsset(req.SlideID)
		return slides.SlideRecord{}, err
	}

	deck.Store.ResolveAsset(req.SlideID, assetURL, resolvedLayout)
	updated, ok := deck.Store.Get(req.SlideID)
	if !ok {
		// Deleted mid-flight; nothing to report and nothing to resurrect.
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}
	return updated, nil
}

// callWithRetry drives the bounded retry loop against the fixed image tier.
// A response without an image payload counts as a transient failure exactly
// like a network error. Configuration errors are never retried.
func (g *AssetGenerator) callWithRetry(ctx context.Context, cred gateway.Credential, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		assetURL, err := g.client.GenerateImage(ctx, cred, gateway.ImageRequest{
			Model:  g.imageModel,
			Prompt: prompt,
		})
		if err == nil {
			return assetURL, nil
		}
		if gateway.IsConfiguration(err) {
			return "", err
		}
		lastErr = err
		g.logger.Warn("asset generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxAttempts),
			zap.Error(err))
		if attempt < g.maxAttempts {
			if err := g.sleep(ctx, time.Duration(attempt)*g.retryBase); err != nil {
				return "", gateway.NewExhaustedError(opAsset, lastErr)
			}
		}
	}
	return "", gateway.NewExhaustedError(opAsset, lastErr)
}

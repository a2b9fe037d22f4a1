package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	"go.uber.org/zap"
)

const opOutline = "generation.outline"

var (
	errMissingClient  = errors.New("generation: model client is required")
	errMissingIDs     = errors.New("generation: id provider is required")
	errEmptySource    = errors.New("generation: source text is required")
	errEmptyOutline   = errors.New("generation: model returned an empty outline")
	errMissingField   = errors.New("generation: outline item missing required field")
	errOutlineNotList = errors.New("generation: outline response is not an array")
)

// OutlineGeneratorConfig configures outline generation.
type OutlineGeneratorConfig struct {
	Client ModelClient
	// Tiers are tried in order; the first entry is the primary model.
	Tiers  []gateway.Tier
	IDs    slides.IDProvider
	Logger *zap.Logger
}

// OutlineGenerator converts raw source text into an initial slide sequence via
// one structured generation call with tier fallback.
type OutlineGenerator struct {
	client ModelClient
	tiers  []gateway.Tier
	ids    slides.IDProvider
	logger *zap.Logger
}

// NewOutlineGenerator constructs an OutlineGenerator.
func NewOutlineGenerator(cfg OutlineGeneratorConfig) (*OutlineGenerator, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	if len(cfg.Tiers) == 0 {
		return nil, errNoTiers
	}
	if cfg.IDs == nil {
		return nil, errMissingIDs
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutlineGenerator{
		client: cfg.Client,
		tiers:  cfg.Tiers,
		ids:    cfg.IDs,
		logger: logger,
	}, nil
}

// outlineItem mirrors the JSON shape requested from the model.
type outlineItem struct {
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	SubTitle      string    `json:"subTitle"`
	ContentPoints *[]string `json:"contentPoints"`
	SpeakerNotes  *string   `json:"speakerNotes"`
	ImagePrompt   *string   `json:"imagePrompt"`
	Layout        *string   `json:"layout"`
}

// Generate issues the outline request and returns the validated, post-processed
// slide records. The returned length follows the model, not the requested
// target. On total failure the error distinguishes a credential problem
// (configuration class) from service unavailability (exhausted class).
func (g *OutlineGenerator) Generate(ctx context.Context, cred gateway.Credential, sourceText string, prefs slides.Preferences) ([]slides.SlideRecord, error) {
	if strings.TrimSpace(sourceText) == "" {
		return nil, gateway.NewValidationError(opOutline, errEmptySource)
	}
	prefs = prefs.Normalize()
	prompt := buildOutlinePrompt(sourceText, prefs)

	var records []slides.SlideRecord
	err := completeWithFallback(ctx, g.client, g.tiers, cred, opOutline, prompt, func(raw string) error {
		items, err := parseOutline(raw)
		if err != nil {
			return err
		}
		parsed, err := g.toRecords(items)
		if err != nil {
			return err
		}
		records = parsed
		return nil
	}, g.logger)
	if err != nil {
		return nil, err
	}

	g.logger.Info("outline generated",
		zap.Int("slides", len(records)),
		zap.Int("target", prefs.TargetCount))
	return records, nil
}

// parseOutline deserializes the model response into outline items. Any item
// failing the required shape fails the whole response: partial outlines are
// worse than a fallback retry.
func parseOutline(raw string) ([]outlineItem, error) {
	payload := gateway.ExtractJSON(raw)
	var items []outlineItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", errOutlineNotList, err)
	}
	if len(items) == 0 {
		return nil, errEmptyOutline
	}
	for i, item := range items {
		if _, err := slides.NewSlideKind(item.Type); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if strings.TrimSpace(item.Title) == "" {
			return nil, fmt.Errorf("item %d: %w", i, slides.ErrEmptyTitle)
		}
		if item.ContentPoints == nil {
			return nil, fmt.Errorf("item %d (contentPoints): %w", i, errMissingField)
		}
		if item.SpeakerNotes == nil {
			return nil, fmt.Errorf("item %d (speakerNotes): %w", i, errMissingField)
		}
		if item.ImagePrompt == nil {
			return nil, fmt.Errorf("item %d (imagePrompt): %w", i, errMissingField)
		}
		if item.Layout == nil {
			return nil, fmt.Errorf("item %d (layout): %w", i, errMissingField)
		}
		if _, err := slides.NewSlideLayout(*item.Layout); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return items, nil
}

// toRecords assigns fresh identifiers and applies the product defaults: no
// asset yet, and the layout is forced to full-image mode no matter what the
// model proposed.
func (g *OutlineGenerator) toRecords(items []outlineItem) ([]slides.SlideRecord, error) {
	records := make([]slides.SlideRecord, 0, len(items))
	for _, item := range items {
		id, err := g.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generation: id generation: %w", err)
		}
		kind, _ := slides.NewSlideKind(item.Type)
		records = append(records, slides.SlideRecord{
			ID:           id,
			Kind:         kind,
			Layout:       slides.LayoutFullImage,
			Title:        item.Title,
			Subtitle:     item.SubTitle,
			BodyPoints:   append([]string(nil), (*item.ContentPoints)...),
			SpeakerNotes: *item.SpeakerNotes,
			AssetPrompt:  *item.ImagePrompt,
		})
	}
	return records, nil
}

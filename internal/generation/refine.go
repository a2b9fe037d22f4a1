package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	"go.uber.org/zap"
)

const (
	opRefine         = "generation.refine"
	opOptimizePrompt = "generation.optimize_prompt"
)

// RefinerConfig configures per-slide content rewriting.
type RefinerConfig struct {
	Client ModelClient
	Tiers  []gateway.Tier
	Logger *zap.Logger
}

// Refiner rewrites a single slide's text content, or derives a better asset
// prompt from it, using the text tiers with the same fallback order as outline
// generation.
type Refiner struct {
	client ModelClient
	tiers  []gateway.Tier
	logger *zap.Logger
}

// NewRefiner constructs a Refiner.
func NewRefiner(cfg RefinerConfig) (*Refiner, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	if len(cfg.Tiers) == 0 {
		return nil, errNoTiers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{client: cfg.Client, tiers: cfg.Tiers, logger: logger}, nil
}

// refinedContent mirrors the JSON object requested from the model.
type refinedContent struct {
	Title         string   `json:"title"`
	ContentPoints []string `json:"contentPoints"`
	SpeakerNotes  string   `json:"speakerNotes"`
}

// RefineContent rewrites the slide's title, body points and notes per the
// user's instruction and patches the record by id. Fields the model left empty
// keep their current value.
func (r *Refiner) RefineContent(ctx context.Context, cred gateway.Credential, deck *slides.Deck, slideID, instruction string) (slides.SlideRecord, error) {
	if strings.TrimSpace(instruction) == "" {
		return slides.SlideRecord{}, gateway.NewValidationError(opRefine, fmt.Errorf("instruction is required"))
	}
	record, ok := deck.Store.Get(slideID)
	if !ok {
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}

	prompt := buildRefinePrompt(record, instruction)
	var refined refinedContent
	err := completeWithFallback(ctx, r.client, r.tiers, cred, opRefine, prompt, func(raw string) error {
		payload := gateway.ExtractJSON(raw)
		var parsed refinedContent
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			return fmt.Errorf("refine response is not an object: %w", err)
		}
		refined = parsed
		return nil
	}, r.logger)
	if err != nil {
		return slides.SlideRecord{}, err
	}

	updated, ok := deck.Store.Update(slideID, func(current slides.SlideRecord) slides.SlideRecord {
		if strings.TrimSpace(refined.Title) != "" {
			current.Title = refined.Title
		}
		if refined.ContentPoints != nil {
			current.BodyPoints = append([]string(nil), refined.ContentPoints...)
		}
		if strings.TrimSpace(refined.SpeakerNotes) != "" {
			current.SpeakerNotes = refined.SpeakerNotes
		}
		return current
	})
	if !ok {
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}
	return updated, nil
}

// OptimizePrompt derives a fresh asset prompt from the slide's current content
// and stores it on the record. This never fails outright: when every tier is
// down a deterministic default prompt is used instead, because a placeholder
// prompt is still more useful to the user than an error.
func (r *Refiner) OptimizePrompt(ctx context.Context, cred gateway.Credential, deck *slides.Deck, slideID string) (slides.SlideRecord, error) {
	record, ok := deck.Store.Get(slideID)
	if !ok {
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}

	prompt := buildPromptOptimizePrompt(record)
	optimized := ""
	err := completeWithFallback(ctx, r.client, r.tiers, cred, opOptimizePrompt, prompt, func(raw string) error {
		payload := gateway.ExtractJSON(raw)
		var parsed struct {
			ImagePrompt string `json:"imagePrompt"`
		}
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			return fmt.Errorf("optimize response is not an object: %w", err)
		}
		optimized = strings.TrimSpace(parsed.ImagePrompt)
		return nil
	}, r.logger)
	if err != nil {
		if gateway.IsConfiguration(err) {
			return slides.SlideRecord{}, err
		}
		r.logger.Warn("prompt optimization fell back to default", zap.Error(err))
	}
	if optimized == "" {
		optimized = defaultAssetPrompt(record.Title)
	}

	updated, ok := deck.Store.Update(slideID, func(current slides.SlideRecord) slides.SlideRecord {
		current.AssetPrompt = optimized
		return current
	})
	if !ok {
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}
	return updated, nil
}

package slides

import (
	"errors"
	"fmt"
	"strings"
)

// SlideKind enumerates the structural role of a slide within a deck.
type SlideKind string

const (
	KindCover   SlideKind = "cover"
	KindSection SlideKind = "section"
	KindContent SlideKind = "content"
	KindEnd     SlideKind = "end"
)

// SlideLayout enumerates the supported visual arrangements.
type SlideLayout string

const (
	LayoutTextOnly   SlideLayout = "text-only"
	LayoutImageRight SlideLayout = "text-image-right"
	LayoutImageLeft  SlideLayout = "text-image-left"
	LayoutCenter     SlideLayout = "center"
	// LayoutFullImage renders the generated asset as the entire slide. Decks
	// start in this mode after outline generation.
	LayoutFullImage SlideLayout = "ai-background"
)

var (
	// ErrInvalidKind indicates a kind tag outside the closed enumeration.
	ErrInvalidKind = errors.New("slides: invalid slide kind")
	// ErrInvalidLayout indicates a layout tag outside the closed enumeration.
	ErrInvalidLayout = errors.New("slides: invalid slide layout")
	// ErrEmptyTitle indicates a slide without a usable title.
	ErrEmptyTitle = errors.New("slides: title must not be empty")
)

// NewSlideKind validates a raw kind tag.
func NewSlideKind(raw string) (SlideKind, error) {
	kind := SlideKind(strings.TrimSpace(raw))
	switch kind {
	case KindCover, KindSection, KindContent, KindEnd:
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
}

// NewSlideLayout validates a raw layout tag.
func NewSlideLayout(raw string) (SlideLayout, error) {
	layout := SlideLayout(strings.TrimSpace(raw))
	switch layout {
	case LayoutTextOnly, LayoutImageRight, LayoutImageLeft, LayoutCenter, LayoutFullImage:
		return layout, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLayout, raw)
}

// SlideRecord is one unit of presentation content and its asset state. The ID
// is assigned at creation and is the sole mutation key for the record's
// lifetime; position in the deck carries no identity.
type SlideRecord struct {
	ID           string
	Kind         SlideKind
	Layout       SlideLayout
	Title        string
	Subtitle     string
	BodyPoints   []string
	SpeakerNotes string
	// AssetPrompt is the instruction used for the last or next asset call.
	AssetPrompt string
	// AssetURL is a self-contained data URI when present; empty means no asset.
	AssetURL string
	// AssetPending is true strictly between asset request issuance and its
	// resolution.
	AssetPending bool
}

// Validate checks the closed enumerations and the title floor.
func (r SlideRecord) Validate() error {
	if _, err := NewSlideKind(string(r.Kind)); err != nil {
		return err
	}
	if _, err := NewSlideLayout(string(r.Layout)); err != nil {
		return err
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Clone returns a copy that shares no mutable state with the receiver.
func (r SlideRecord) Clone() SlideRecord {
	clone := r
	if r.BodyPoints != nil {
		clone.BodyPoints = append([]string(nil), r.BodyPoints...)
	}
	return clone
}

// Density selects how much content each generated slide carries.
type Density string

const (
	DensityStandard Density = "standard"
	DensityDetailed Density = "detailed"
)

// NewDensity validates a raw density tag, defaulting empty input to standard.
func NewDensity(raw string) (Density, error) {
	switch Density(strings.TrimSpace(raw)) {
	case DensityStandard, "":
		return DensityStandard, nil
	case DensityDetailed:
		return DensityDetailed, nil
	}
	return "", fmt.Errorf("slides: invalid density %q", raw)
}

// Preferences carries the user's outline-generation settings. TargetCount is a
// soft target: the model may return a different number of slides.
type Preferences struct {
	Purpose           string
	Density           Density
	TargetCount       int
	CustomInstruction string
}

const (
	defaultPurpose     = "工作汇报"
	defaultTargetCount = 10
)

// Normalize fills unset preference fields with product defaults.
func (p Preferences) Normalize() Preferences {
	if strings.TrimSpace(p.Purpose) == "" {
		p.Purpose = defaultPurpose
	}
	if p.Density == "" {
		p.Density = DensityStandard
	}
	if p.TargetCount <= 0 {
		p.TargetCount = defaultTargetCount
	}
	return p
}

// NewPlaceholderSlide returns the record created by a user "insert" action.
func NewPlaceholderSlide(id string) SlideRecord {
	return SlideRecord{
		ID:           id,
		Kind:         KindContent,
		Layout:       LayoutTextOnly,
		Title:        "新页面",
		BodyPoints:   []string{"点击编辑要点", "点击编辑要点"},
		SpeakerNotes: "新页面备注",
		AssetPrompt:  "Abstract background",
	}
}

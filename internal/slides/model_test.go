package slides

import (
	"errors"
	"testing"
)

func TestNewSlideKindAcceptsClosedSet(t *testing.T) {
	for _, raw := range []string{"cover", "section", "content", "end"} {
		if _, err := NewSlideKind(raw); err != nil {
			t.Fatalf("expected %q to be valid: %v", raw, err)
		}
	}
}

func TestNewSlideKindRejectsUnknownTag(t *testing.T) {
	if _, err := NewSlideKind("chapter"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestNewSlideLayoutRejectsUnknownTag(t *testing.T) {
	if _, err := NewSlideLayout("two-column"); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("expected ErrInvalidLayout, got %v", err)
	}
}

func TestValidateRequiresTitle(t *testing.T) {
	record := SlideRecord{ID: "s-1", Kind: KindContent, Layout: LayoutTextOnly, Title: "   "}
	if err := record.Validate(); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	prefs := Preferences{}.Normalize()
	if prefs.Purpose != "工作汇报" {
		t.Fatalf("unexpected default purpose: %q", prefs.Purpose)
	}
	if prefs.Density != DensityStandard {
		t.Fatalf("unexpected default density: %q", prefs.Density)
	}
	if prefs.TargetCount != 10 {
		t.Fatalf("unexpected default target count: %d", prefs.TargetCount)
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	prefs := Preferences{Purpose: "课程讲义", Density: DensityDetailed, TargetCount: 25}.Normalize()
	if prefs.Purpose != "课程讲义" || prefs.Density != DensityDetailed || prefs.TargetCount != 25 {
		t.Fatalf("explicit preferences were overwritten: %+v", prefs)
	}
}

func TestNewPlaceholderSlidePassesValidation(t *testing.T) {
	record := NewPlaceholderSlide("s-new")
	if err := record.Validate(); err != nil {
		t.Fatalf("placeholder must be a valid record: %v", err)
	}
	if record.AssetURL != "" || record.AssetPending {
		t.Fatalf("placeholder must start without asset state: %+v", record)
	}
}

func TestThemeByIDFallsBackToDefault(t *testing.T) {
	theme := ThemeByID("no-such-theme")
	if theme.ID != "corporate-blue" {
		t.Fatalf("expected default theme fallback, got %q", theme.ID)
	}
}

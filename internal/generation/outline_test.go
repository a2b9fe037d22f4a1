package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
)

type sequentialIDGenerator struct {
	next int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("slide-%d", g.next), nil
}

func newTestOutlineGenerator(t *testing.T, client ModelClient) *OutlineGenerator {
	t.Helper()
	generator, err := NewOutlineGenerator(OutlineGeneratorConfig{
		Client: client,
		Tiers:  testTiers,
		IDs:    &sequentialIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to build generator: %v", err)
	}
	return generator
}

func TestGenerateParsesFencedResponse(t *testing.T) {
	client := &fakeModelClient{
		completeResponses: []stubResponse{
			{value: "```json\n" + validOutlineJSON + "\n```"},
		},
	}
	generator := newTestOutlineGenerator(t, client)

	records, err := generator.Generate(context.Background(), "sk-test", "年度经营数据……", slides.Preferences{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if client.completeCalls[0].Model != "model-pro" {
		t.Fatalf("first attempt must use the primary tier, got %q", client.completeCalls[0].Model)
	}
}

func TestGenerateFallsBackWhenPrimaryFails(t *testing.T) {
	client := &fakeModelClient{
		completeResponses: []stubResponse{
			{err: gateway.NewTransientError("gateway.complete", errors.New("503"))},
			{value: validOutlineJSON},
		},
	}
	generator := newTestOutlineGenerator(t, client)

	records, err := generator.Generate(context.Background(), "sk-test", "原始材料", slides.Preferences{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.completeCount() != 2 {
		t.Fatalf("expected 2 tier attempts, got %d", client.completeCount())
	}
	if client.completeCalls[1].Model != "model-flash" {
		t.Fatalf("second attempt must use the fallback tier, got %q", client.completeCalls[1].Model)
	}
	if len(records) != 3 {
		t.Fatalf("expected records from the fallback tier, got %d", len(records))
	}
}

func TestGenerateAssignsFreshIDsAndForcesLayout(t *testing.T) {
	client := &fakeModelClient{completeResponses: []stubResponse{{value: validOutlineJSON}}}
	generator := newTestOutlineGenerator(t, client)

	records, err := generator.Generate(context.Background(), "sk-test", "材料", slides.Preferences{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[string]bool{}
	for _, record := range records {
		if record.ID == "" || seen[record.ID] {
			t.Fatalf("expected unique non-empty ids, got %q", record.ID)
		}
		seen[record.ID] = true
		if record.Layout != slides.LayoutFullImage {
			t.Fatalf("layout must be forced to full-image, got %q", record.Layout)
		}
		if record.AssetURL != "" || record.AssetPending {
			t.Fatalf("fresh records must start without asset state: %+v", record)
		}
	}
}

func TestGenerateRejectsItemMissingRequiredField(t *testing.T) {
	// speakerNotes is absent in both responses, so both tiers are rejected.
	missingField := `[{"type":"cover","title":"标题","contentPoints":[],"imagePrompt":"x","layout":"center"}]`
	client := &fakeModelClient{
		completeResponses: []stubResponse{{value: missingField}, {value: missingField}},
	}
	generator := newTestOutlineGenerator(t, client)

	_, err := generator.Generate(context.Background(), "sk-test", "材料", slides.Preferences{})
	if err == nil {
		t.Fatalf("expected error for incomplete item")
	}
	if gateway.ClassOf(err) != gateway.ClassExhausted {
		t.Fatalf("expected exhausted class after both tiers, got %s", gateway.ClassOf(err))
	}
	if client.completeCount() != 2 {
		t.Fatalf("a rejected response must fall through to the next tier, got %d calls", client.completeCount())
	}
}

func TestGenerateAbortsOnConfigurationError(t *testing.T) {
	client := &fakeModelClient{
		completeResponses: []stubResponse{
			{err: gateway.NewConfigurationError("gateway.complete", gateway.ErrMissingCredential)},
		},
	}
	generator := newTestOutlineGenerator(t, client)

	_, err := generator.Generate(context.Background(), "sk-bad", "材料", slides.Preferences{})
	if !gateway.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if client.completeCount() != 1 {
		t.Fatalf("a bad credential must not be retried on the fallback tier, got %d calls", client.completeCount())
	}
}

func TestGenerateRejectsEmptySource(t *testing.T) {
	client := &fakeModelClient{}
	generator := newTestOutlineGenerator(t, client)

	_, err := generator.Generate(context.Background(), "sk-test", "   \n", slides.Preferences{})
	if gateway.ClassOf(err) != gateway.ClassValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if client.completeCount() != 0 {
		t.Fatalf("empty source must not reach the model")
	}
}

func TestGenerateRejectsNonListResponse(t *testing.T) {
	client := &fakeModelClient{
		completeResponses: []stubResponse{
			{value: `{"title":"这不是数组"}`},
			{value: `抱歉，我无法完成这个任务。`},
		},
	}
	generator := newTestOutlineGenerator(t, client)

	_, err := generator.Generate(context.Background(), "sk-test", "材料", slides.Preferences{})
	if err == nil {
		t.Fatalf("expected error for non-list responses")
	}
	if gateway.ClassOf(err) != gateway.ClassExhausted {
		t.Fatalf("expected exhausted class, got %s", gateway.ClassOf(err))
	}
}

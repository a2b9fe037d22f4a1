package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
)

// fakeModelClient scripts gateway responses per call, in order.
type fakeModelClient struct {
	mu sync.Mutex

	completeResponses []stubResponse
	completeCalls     []gateway.CompletionRequest

	imageResponses []stubResponse
	imageCalls     []gateway.ImageRequest

	// onImageCall runs inside GenerateImage before the scripted response is
	// consumed, with the call index (0-based).
	onImageCall func(call int)
}

type stubResponse struct {
	value string
	err   error
}

func (f *fakeModelClient) Complete(_ context.Context, _ gateway.Credential, req gateway.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls = append(f.completeCalls, req)
	if len(f.completeResponses) == 0 {
		return "", errors.New("fakeModelClient: no scripted completion")
	}
	response := f.completeResponses[0]
	f.completeResponses = f.completeResponses[1:]
	return response.value, response.err
}

func (f *fakeModelClient) GenerateImage(_ context.Context, _ gateway.Credential, req gateway.ImageRequest) (string, error) {
	f.mu.Lock()
	call := len(f.imageCalls)
	f.imageCalls = append(f.imageCalls, req)
	hook := f.onImageCall
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.imageResponses) == 0 {
		return "", errors.New("fakeModelClient: no scripted image response")
	}
	response := f.imageResponses[0]
	f.imageResponses = f.imageResponses[1:]
	return response.value, response.err
}

func (f *fakeModelClient) completeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completeCalls)
}

func (f *fakeModelClient) imageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.imageCalls)
}

// recordedSleep captures requested delays instead of waiting.
type recordedSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordedSleep) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

var testTiers = []gateway.Tier{
	{Name: "primary", Model: "model-pro"},
	{Name: "fallback", Model: "model-flash"},
}

func newTestDeck(t *testing.T, records ...slides.SlideRecord) *slides.Deck {
	t.Helper()
	store, err := slides.NewStore(records)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return &slides.Deck{
		ID:          "deck-1",
		WorkspaceID: "ws-1",
		Title:       "测试演示",
		ThemeID:     "corporate-blue",
		Store:       store,
	}
}

func testSlide(id string) slides.SlideRecord {
	return slides.SlideRecord{
		ID:          id,
		Kind:        slides.KindContent,
		Layout:      slides.LayoutFullImage,
		Title:       fmt.Sprintf("页面 %s", id),
		BodyPoints:  []string{"要点一", "要点二"},
		AssetPrompt: "minimalist gradient background",
	}
}

const validOutlineJSON = `[
  {"type":"cover","title":"年度总结","subTitle":"2026","contentPoints":[],"speakerNotes":"开场白","imagePrompt":"cover art","layout":"center"},
  {"type":"content","title":"核心成果","contentPoints":["营收增长","用户翻倍"],"speakerNotes":"强调数据","imagePrompt":"growth chart","layout":"text-image-right"},
  {"type":"end","title":"谢谢","contentPoints":[],"speakerNotes":"致谢","imagePrompt":"closing art","layout":"center"}
]`

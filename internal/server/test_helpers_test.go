package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/auth"
	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/generation"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type stubGateway struct {
	pingErr error
}

func (s *stubGateway) Ping(_ context.Context, _ gateway.Credential) error {
	return s.pingErr
}

// stubTokenManager maps "token-<workspace>" strings both ways.
type stubTokenManager struct{}

func (stubTokenManager) IssueWorkspaceToken(_ context.Context, workspaceID string) (string, int64, error) {
	return "token-" + workspaceID, 3600, nil
}

func (stubTokenManager) ValidateToken(token string) (string, error) {
	workspaceID := strings.TrimPrefix(token, "token-")
	if workspaceID == token || workspaceID == "" {
		return "", errors.New("invalid token")
	}
	return workspaceID, nil
}

type stubOutlineGenerator struct {
	records []slides.SlideRecord
	err     error
}

func (s *stubOutlineGenerator) Generate(_ context.Context, _ gateway.Credential, _ string, _ slides.Preferences) ([]slides.SlideRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type stubAssetGenerator struct {
	mu       sync.Mutex
	requests []generation.AssetRequest
	err      error
}

func (s *stubAssetGenerator) Generate(_ context.Context, _ gateway.Credential, deck *slides.Deck, req generation.AssetRequest) (slides.SlideRecord, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.err != nil {
		return slides.SlideRecord{}, s.err
	}
	deck.Store.ResolveAsset(req.SlideID, "data:image/png;base64,STUB", slides.LayoutFullImage)
	record, ok := deck.Store.Get(req.SlideID)
	if !ok {
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}
	return record, nil
}

type stubRefiner struct {
	err error
}

func (s *stubRefiner) RefineContent(_ context.Context, _ gateway.Credential, deck *slides.Deck, slideID, _ string) (slides.SlideRecord, error) {
	if s.err != nil {
		return slides.SlideRecord{}, s.err
	}
	record, ok := deck.Store.Update(slideID, func(r slides.SlideRecord) slides.SlideRecord {
		r.Title = "精修标题"
		return r
	})
	if !ok {
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}
	return record, nil
}

func (s *stubRefiner) OptimizePrompt(_ context.Context, _ gateway.Credential, deck *slides.Deck, slideID string) (slides.SlideRecord, error) {
	if s.err != nil {
		return slides.SlideRecord{}, s.err
	}
	record, ok := deck.Store.Update(slideID, func(r slides.SlideRecord) slides.SlideRecord {
		r.AssetPrompt = "optimized prompt"
		return r
	})
	if !ok {
		return slides.SlideRecord{}, slides.ErrSlideNotFound
	}
	return record, nil
}

type stubBatchRunner struct {
	mu       sync.Mutex
	running  bool
	runCalls int
	done     chan struct{}
}

func (s *stubBatchRunner) Start(_ context.Context, _ gateway.Credential, _ *slides.Deck) (<-chan generation.RunResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, generation.ErrBatchRunning
	}
	s.runCalls++
	s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	results := make(chan generation.RunResult, 1)
	results <- generation.RunResult{Total: 1, Succeeded: 1}
	close(results)
	return results, nil
}

func (s *stubBatchRunner) Progress(_ string) generation.BatchProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return generation.BatchProgress{Running: true, Processed: 1, Total: 3}
	}
	return generation.BatchProgress{}
}

type staticWorkspaceIDs struct {
	id string
}

func (s *staticWorkspaceIDs) NewID() (string, error) {
	return s.id, nil
}

type testEnv struct {
	handler     http.Handler
	decks       *slides.Service
	credentials *auth.CredentialRegistry
	gateway     *stubGateway
	outline     *stubOutlineGenerator
	assets      *stubAssetGenerator
	refiner     *stubRefiner
	batch       *stubBatchRunner
}

type testSlideIDs struct {
	next int
}

func (g *testSlideIDs) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("slide-%d", g.next), nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "decks.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&slides.DeckRow{}, &slides.SlideRow{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	deckService, err := slides.NewService(slides.ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1760000000, 0).UTC() },
		IDProvider: &testSlideIDs{},
	})
	if err != nil {
		t.Fatalf("failed to build deck service: %v", err)
	}

	env := &testEnv{
		decks:       deckService,
		credentials: auth.NewCredentialRegistry(),
		gateway:     &stubGateway{},
		outline:     &stubOutlineGenerator{records: outlineFixture()},
		assets:      &stubAssetGenerator{},
		refiner:     &stubRefiner{},
		batch:       &stubBatchRunner{},
	}

	handler, err := NewHTTPHandler(Dependencies{
		Gateway:     env.gateway,
		Tokens:      stubTokenManager{},
		Credentials: env.credentials,
		Decks:       deckService,
		Outline:     env.outline,
		Assets:      env.assets,
		Refiner:     env.refiner,
		Batch:       env.batch,
		IDs:         &staticWorkspaceIDs{id: "ws-new"},
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	env.handler = handler
	return env
}

func outlineFixture() []slides.SlideRecord {
	return []slides.SlideRecord{
		{
			ID:          "slide-a",
			Kind:        slides.KindCover,
			Layout:      slides.LayoutFullImage,
			Title:       "季度汇报",
			AssetPrompt: "cover art",
			BodyPoints:  []string{},
		},
		{
			ID:          "slide-b",
			Kind:        slides.KindContent,
			Layout:      slides.LayoutFullImage,
			Title:       "关键数据",
			BodyPoints:  []string{"增长 40%"},
			AssetPrompt: "growth chart",
		},
	}
}

// authorize wires a session for the workspace: registry credential plus the
// matching bearer token on the request.
func (env *testEnv) authorize(request *http.Request, workspaceID string) {
	env.credentials.Set(workspaceID, gateway.NewCredential("sk-test"))
	request.Header.Set("Authorization", "Bearer token-"+workspaceID)
}

func (env *testEnv) do(t *testing.T, method, path, workspaceID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if workspaceID != "" {
		env.authorize(request, workspaceID)
	}
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func (env *testEnv) createDeck(t *testing.T, workspaceID string) string {
	t.Helper()
	recorder := env.do(t, http.MethodPost, "/decks", workspaceID, map[string]any{
		"source_text": "年度经营数据材料",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("deck creation failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		DeckID string `json:"deck_id"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode deck payload: %v", err)
	}
	return payload.DeckID
}

func decodeErrorPayload(t *testing.T, recorder *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode error payload: %v (%s)", err, recorder.Body.String())
	}
	return payload.Error, payload.Code
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/auth"
	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/generation"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const workspaceIDContextKey = "pptgen_workspace_id"

var (
	errMissingGateway         = errors.New("model gateway dependency required")
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingCredentials     = errors.New("credential registry dependency required")
	errMissingDeckService     = errors.New("deck service dependency required")
	errMissingOutline         = errors.New("outline generator dependency required")
	errMissingAssetGen        = errors.New("asset generator dependency required")
	errMissingRefiner         = errors.New("refiner dependency required")
	errMissingBatchRunner     = errors.New("batch runner dependency required")
	errMissingIDProvider      = errors.New("id provider dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
	errCredentialNotConfigure = errors.New("no validated API key for this session")
)

// CredentialValidator validates a model credential against the live endpoint.
type CredentialValidator interface {
	Ping(ctx context.Context, cred gateway.Credential) error
}

// TokenManager issues and validates workspace session tokens.
type TokenManager interface {
	IssueWorkspaceToken(ctx context.Context, workspaceID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// OutlineGenerator is the outline-generation entry point the router needs.
type OutlineGenerator interface {
	Generate(ctx context.Context, cred gateway.Credential, sourceText string, prefs slides.Preferences) ([]slides.SlideRecord, error)
}

// AssetGenerator is the per-slide asset entry point the router needs.
type AssetGenerator interface {
	Generate(ctx context.Context, cred gateway.Credential, deck *slides.Deck, req generation.AssetRequest) (slides.SlideRecord, error)
}

// Refiner covers the single-slide text and prompt rewrite operations.
type Refiner interface {
	RefineContent(ctx context.Context, cred gateway.Credential, deck *slides.Deck, slideID, instruction string) (slides.SlideRecord, error)
	OptimizePrompt(ctx context.Context, cred gateway.Credential, deck *slides.Deck, slideID string) (slides.SlideRecord, error)
}

// BatchRunner drives deck-wide asset backfill. Start must claim the per-deck
// running guard before it returns.
type BatchRunner interface {
	Start(ctx context.Context, cred gateway.Credential, deck *slides.Deck) (<-chan generation.RunResult, error)
	Progress(deckID string) generation.BatchProgress
}

// Dependencies wires the HTTP layer.
type Dependencies struct {
	Gateway     CredentialValidator
	Tokens      TokenManager
	Credentials *auth.CredentialRegistry
	Decks       *slides.Service
	Outline     OutlineGenerator
	Assets      AssetGenerator
	Refiner     Refiner
	Batch       BatchRunner
	IDs         slides.IDProvider
	Realtime    *RealtimeDispatcher
	Logger      *zap.Logger
}

// NewHTTPHandler builds the gin handler tree.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Gateway == nil {
		return nil, errMissingGateway
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Credentials == nil {
		return nil, errMissingCredentials
	}
	if deps.Decks == nil {
		return nil, errMissingDeckService
	}
	if deps.Outline == nil {
		return nil, errMissingOutline
	}
	if deps.Assets == nil {
		return nil, errMissingAssetGen
	}
	if deps.Refiner == nil {
		return nil, errMissingRefiner
	}
	if deps.Batch == nil {
		return nil, errMissingBatchRunner
	}
	if deps.IDs == nil {
		return nil, errMissingIDProvider
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		gateway:     deps.Gateway,
		tokens:      deps.Tokens,
		credentials: deps.Credentials,
		decks:       deps.Decks,
		outline:     deps.Outline,
		assets:      deps.Assets,
		refiner:     deps.Refiner,
		batch:       deps.Batch,
		ids:         deps.IDs,
		realtime:    realtime,
		logger:      logger,
	}

	router.POST("/auth/credential", handler.handleCredentialAuth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.POST("/decks", handler.handleCreateDeck)
	protected.GET("/decks", handler.handleListDecks)
	protected.GET("/decks/:deckID", handler.handleGetDeck)
	protected.DELETE("/decks/:deckID", handler.handleDeleteDeck)
	protected.POST("/decks/:deckID/slides", handler.handleInsertSlide)
	protected.PATCH("/decks/:deckID/slides/:slideID", handler.handleEditSlide)
	protected.DELETE("/decks/:deckID/slides/:slideID", handler.handleDeleteSlide)
	protected.POST("/decks/:deckID/slides/:slideID/asset", handler.handleGenerateAsset)
	protected.POST("/decks/:deckID/slides/:slideID/refine", handler.handleRefineSlide)
	protected.POST("/decks/:deckID/slides/:slideID/prompt", handler.handleOptimizePrompt)
	protected.POST("/decks/:deckID/batch", handler.handleStartBatch)
	protected.GET("/decks/:deckID/batch", handler.handleBatchProgress)
	protected.GET("/decks/:deckID/events", handler.handleDeckEvents)

	return router, nil
}

type httpHandler struct {
	gateway     CredentialValidator
	tokens      TokenManager
	credentials *auth.CredentialRegistry
	decks       *slides.Service
	outline     OutlineGenerator
	assets      AssetGenerator
	refiner     Refiner
	batch       BatchRunner
	ids         slides.IDProvider
	realtime    *RealtimeDispatcher
	logger      *zap.Logger
}

type credentialRequestPayload struct {
	APIKey string `json:"api_key"`
}

type credentialResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	WorkspaceID string `json:"workspace_id"`
}

func (h *httpHandler) handleCredentialAuth(c *gin.Context) {
	var request credentialRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.APIKey) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "api_key is required")
		return
	}

	cred := gateway.NewCredential(request.APIKey)
	if cred.IsZero() {
		respondError(c, http.StatusBadRequest, "configuration", "api_key contains no usable characters")
		return
	}

	if err := h.gateway.Ping(c.Request.Context(), cred); err != nil {
		h.logger.Warn("credential validation failed", zap.Error(err))
		if gateway.IsConfiguration(err) {
			respondError(c, http.StatusUnauthorized, "configuration", "API key was rejected by the model service")
			return
		}
		respondError(c, http.StatusServiceUnavailable, "service_unavailable", "model service unreachable, retry later")
		return
	}

	workspaceID, err := h.ids.NewID()
	if err != nil {
		h.logger.Error("workspace id generation failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal", "could not create workspace")
		return
	}

	token, expiresIn, err := h.tokens.IssueWorkspaceToken(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal", "token issue failed")
		return
	}

	h.credentials.Set(workspaceID, cred)

	c.JSON(http.StatusOK, credentialResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		WorkspaceID: workspaceID,
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	workspaceID := c.GetString(workspaceIDContextKey)
	h.credentials.Clear(workspaceID)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	workspaceID, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(workspaceIDContextKey, workspaceID)
	c.Next()
}

// workspaceCredential resolves the caller's stored credential. A session whose
// credential is gone (process restart, logout elsewhere) gets a configuration
// error telling the user to validate the key again, never a silent fallback.
func (h *httpHandler) workspaceCredential(c *gin.Context) (string, gateway.Credential, bool) {
	workspaceID := c.GetString(workspaceIDContextKey)
	if workspaceID == "" {
		respondError(c, http.StatusUnauthorized, "configuration", errCredentialNotConfigure.Error())
		return "", "", false
	}
	cred, err := h.credentials.Get(workspaceID)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "configuration", "API key not configured; validate your key again")
		return "", "", false
	}
	return workspaceID, cred, true
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// respondGenerationError maps the gateway taxonomy onto HTTP statuses. The
// code field keeps "fix your key" distinguishable from "retry later".
func (h *httpHandler) respondGenerationError(c *gin.Context, err error) {
	switch gateway.ClassOf(err) {
	case gateway.ClassConfiguration:
		respondError(c, http.StatusUnauthorized, "configuration", "API key missing or rejected; validate your key")
	case gateway.ClassValidation:
		respondError(c, http.StatusUnprocessableEntity, "validation", "model response did not match the expected shape")
	case gateway.ClassExhausted:
		respondError(c, http.StatusServiceUnavailable, "service_unavailable", "model service busy, retry later")
	default:
		respondError(c, http.StatusBadGateway, "transient", "model service failed, retry later")
	}
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/generation"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createDeckRequestPayload struct {
	SourceText        string `json:"source_text"`
	SlideCount        int    `json:"slide_count"`
	Purpose           string `json:"purpose"`
	Density           string `json:"density"`
	CustomInstruction string `json:"custom_instruction"`
	ThemeID           string `json:"theme_id"`
}

type slidePayload struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Layout       string   `json:"layout"`
	Title        string   `json:"title"`
	Subtitle     string   `json:"subtitle"`
	BodyPoints   []string `json:"body_points"`
	SpeakerNotes string   `json:"speaker_notes"`
	AssetPrompt  string   `json:"asset_prompt"`
	AssetURL     string   `json:"asset_url"`
	AssetPending bool     `json:"asset_pending"`
}

type deckHeaderPayload struct {
	DeckID    string `json:"deck_id"`
	Title     string `json:"title"`
	ThemeID   string `json:"theme_id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type deckResponsePayload struct {
	DeckID string         `json:"deck_id"`
	Title  string         `json:"title"`
	Theme  slides.Theme   `json:"theme"`
	Slides []slidePayload `json:"slides"`
}

func toSlidePayload(record slides.SlideRecord) slidePayload {
	return slidePayload{
		ID:           record.ID,
		Kind:         string(record.Kind),
		Layout:       string(record.Layout),
		Title:        record.Title,
		Subtitle:     record.Subtitle,
		BodyPoints:   record.BodyPoints,
		SpeakerNotes: record.SpeakerNotes,
		AssetPrompt:  record.AssetPrompt,
		AssetURL:     record.AssetURL,
		AssetPending: record.AssetPending,
	}
}

func toDeckPayload(deck *slides.Deck) deckResponsePayload {
	snapshot := deck.Store.Snapshot()
	payloads := make([]slidePayload, 0, len(snapshot))
	for _, record := range snapshot {
		payloads = append(payloads, toSlidePayload(record))
	}
	return deckResponsePayload{
		DeckID: deck.ID,
		Title:  deck.Title,
		Theme:  deck.Theme(),
		Slides: payloads,
	}
}

func (h *httpHandler) handleCreateDeck(c *gin.Context) {
	workspaceID, cred, ok := h.workspaceCredential(c)
	if !ok {
		return
	}

	var request createDeckRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if strings.TrimSpace(request.SourceText) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "source_text is required")
		return
	}
	density, err := slides.NewDensity(request.Density)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "density must be standard or detailed")
		return
	}

	prefs := slides.Preferences{
		Purpose:           request.Purpose,
		Density:           density,
		TargetCount:       request.SlideCount,
		CustomInstruction: request.CustomInstruction,
	}
	records, err := h.outline.Generate(c.Request.Context(), cred, request.SourceText, prefs)
	if err != nil {
		h.logger.Warn("outline generation failed",
			zap.String("workspace_id", workspaceID),
			zap.Error(err))
		h.respondGenerationError(c, err)
		return
	}

	deck, err := h.decks.CreateDeck(c.Request.Context(), workspaceID, request.ThemeID, records)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDeckPayload(deck))
}

func (h *httpHandler) handleListDecks(c *gin.Context) {
	workspaceID := c.GetString(workspaceIDContextKey)
	rows, err := h.decks.ListDecks(c.Request.Context(), workspaceID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	headers := make([]deckHeaderPayload, 0, len(rows))
	for _, row := range rows {
		headers = append(headers, deckHeaderPayload{
			DeckID:    row.DeckID,
			Title:     row.Title,
			ThemeID:   row.ThemeID,
			CreatedAt: row.CreatedAtSeconds,
			UpdatedAt: row.UpdatedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"decks": headers})
}

// ownedDeck loads the deck in the path and enforces workspace ownership. A
// deck owned by another workspace reads as absent.
func (h *httpHandler) ownedDeck(c *gin.Context) (*slides.Deck, bool) {
	workspaceID := c.GetString(workspaceIDContextKey)
	deck, err := h.decks.GetDeck(c.Request.Context(), c.Param("deckID"))
	if err != nil {
		if errors.Is(err, slides.ErrDeckNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "deck not found")
		} else {
			h.respondServiceError(c, err)
		}
		return nil, false
	}
	if deck.WorkspaceID != workspaceID {
		respondError(c, http.StatusNotFound, "not_found", "deck not found")
		return nil, false
	}
	return deck, true
}

func (h *httpHandler) handleGetDeck(c *gin.Context) {
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toDeckPayload(deck))
}

func (h *httpHandler) handleDeleteDeck(c *gin.Context) {
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	if err := h.decks.DeleteDeck(c.Request.Context(), deck.ID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type insertSlideRequestPayload struct {
	AfterSlideID string `json:"after_slide_id"`
}

func (h *httpHandler) handleInsertSlide(c *gin.Context) {
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	var request insertSlideRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	record, err := h.decks.InsertSlide(c.Request.Context(), deck, request.AfterSlideID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.publishSlideChange(deck, record)
	c.JSON(http.StatusCreated, toSlidePayload(record))
}

type editSlideRequestPayload struct {
	Kind         *string   `json:"kind"`
	Layout       *string   `json:"layout"`
	Title        *string   `json:"title"`
	Subtitle     *string   `json:"subtitle"`
	BodyPoints   *[]string `json:"body_points"`
	SpeakerNotes *string   `json:"speaker_notes"`
	AssetPrompt  *string   `json:"asset_prompt"`
}

func (h *httpHandler) handleEditSlide(c *gin.Context) {
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	var request editSlideRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	patch := slides.SlidePatch{
		Kind:         request.Kind,
		Layout:       request.Layout,
		Title:        request.Title,
		Subtitle:     request.Subtitle,
		BodyPoints:   request.BodyPoints,
		SpeakerNotes: request.SpeakerNotes,
		AssetPrompt:  request.AssetPrompt,
	}
	record, err := h.decks.EditSlide(c.Request.Context(), deck, c.Param("slideID"), patch)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.publishSlideChange(deck, record)
	c.JSON(http.StatusOK, toSlidePayload(record))
}

func (h *httpHandler) handleDeleteSlide(c *gin.Context) {
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	slideID := c.Param("slideID")
	if err := h.decks.RemoveSlide(c.Request.Context(), deck, slideID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.realtime.Publish(RealtimeMessage{
		WorkspaceID: deck.WorkspaceID,
		EventType:   RealtimeEventSlideChanged,
		DeckID:      deck.ID,
		Payload:     gin.H{"slide_id": slideID, "removed": true},
	})
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type assetRequestPayload struct {
	Mode        string `json:"mode"`
	Prompt      string `json:"prompt"`
	Instruction string `json:"instruction"`
}

func (h *httpHandler) handleGenerateAsset(c *gin.Context) {
	_, cred, ok := h.workspaceCredential(c)
	if !ok {
		return
	}
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	var request assetRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	mode, err := generation.NewAssetMode(request.Mode)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "mode must be full or diagram")
		return
	}

	record, err := h.assets.Generate(c.Request.Context(), cred, deck, generation.AssetRequest{
		SlideID:     c.Param("slideID"),
		Mode:        mode,
		Prompt:      request.Prompt,
		Instruction: request.Instruction,
	})
	if err != nil {
		if errors.Is(err, slides.ErrSlideNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "slide not found")
			return
		}
		h.respondGenerationError(c, err)
		return
	}

	h.persistAfterGeneration(c.Request.Context(), deck)
	h.publishSlideChange(deck, record)
	c.JSON(http.StatusOK, toSlidePayload(record))
}

type refineRequestPayload struct {
	Instruction string `json:"instruction"`
}

func (h *httpHandler) handleRefineSlide(c *gin.Context) {
	_, cred, ok := h.workspaceCredential(c)
	if !ok {
		return
	}
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	var request refineRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Instruction) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "instruction is required")
		return
	}

	record, err := h.refiner.RefineContent(c.Request.Context(), cred, deck, c.Param("slideID"), request.Instruction)
	if err != nil {
		if errors.Is(err, slides.ErrSlideNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "slide not found")
			return
		}
		h.respondGenerationError(c, err)
		return
	}

	h.persistAfterGeneration(c.Request.Context(), deck)
	h.publishSlideChange(deck, record)
	c.JSON(http.StatusOK, toSlidePayload(record))
}

func (h *httpHandler) handleOptimizePrompt(c *gin.Context) {
	_, cred, ok := h.workspaceCredential(c)
	if !ok {
		return
	}
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}

	record, err := h.refiner.OptimizePrompt(c.Request.Context(), cred, deck, c.Param("slideID"))
	if err != nil {
		if errors.Is(err, slides.ErrSlideNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "slide not found")
			return
		}
		h.respondGenerationError(c, err)
		return
	}

	h.persistAfterGeneration(c.Request.Context(), deck)
	h.publishSlideChange(deck, record)
	c.JSON(http.StatusOK, toSlidePayload(record))
}

func (h *httpHandler) handleStartBatch(c *gin.Context) {
	_, cred, ok := h.workspaceCredential(c)
	if !ok {
		return
	}
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	pending := len(deck.Store.MissingAssets())
	// The run outlives the request; cancelling the HTTP call must not cancel
	// generation already in flight. Start claims the per-deck guard before
	// returning, so two racing requests cannot both be accepted.
	done, err := h.batch.Start(context.Background(), cred, deck)
	if err != nil {
		if errors.Is(err, generation.ErrBatchRunning) {
			respondError(c, http.StatusConflict, "batch_running", "a batch run is already in progress for this deck")
			return
		}
		h.logger.Error("batch start failed",
			zap.String("deck_id", deck.ID),
			zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal", "could not start the batch run")
		return
	}
	go func() {
		result := <-done
		h.persistAfterGeneration(context.Background(), deck)
		h.logger.Info("batch run finished",
			zap.String("deck_id", deck.ID),
			zap.Int("total", result.Total),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed))
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "pending": pending})
}

func (h *httpHandler) handleBatchProgress(c *gin.Context) {
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	progress := h.batch.Progress(deck.ID)
	c.JSON(http.StatusOK, gin.H{
		"running":   progress.Running,
		"completed": progress.Processed,
		"total":     progress.Total,
	})
}

func (h *httpHandler) publishSlideChange(deck *slides.Deck, record slides.SlideRecord) {
	h.realtime.Publish(RealtimeMessage{
		WorkspaceID: deck.WorkspaceID,
		EventType:   RealtimeEventSlideChanged,
		DeckID:      deck.ID,
		Payload:     toSlidePayload(record),
	})
}

// persistAfterGeneration snapshots the deck after a model-driven mutation. A
// write failure is logged, not surfaced: the in-memory deck already holds the
// result and the next mutation retries the snapshot.
func (h *httpHandler) persistAfterGeneration(ctx context.Context, deck *slides.Deck) {
	if err := h.decks.Persist(ctx, deck); err != nil {
		h.logger.Error("post-generation persistence failed",
			zap.String("deck_id", deck.ID),
			zap.Error(err))
	}
}

func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	var svcErr *slides.ServiceError
	if !errors.As(err, &svcErr) {
		respondError(c, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	code := svcErr.Code()
	reason := code[strings.LastIndex(code, ".")+1:]
	switch reason {
	case "not_found":
		respondError(c, http.StatusNotFound, "not_found", "resource not found")
	case "last_slide":
		respondError(c, http.StatusConflict, "last_slide", "a deck must keep at least one slide")
	case "invalid_kind", "invalid_layout", "invalid_records", "missing_workspace":
		respondError(c, http.StatusBadRequest, "invalid_request", svcErr.Error())
	default:
		h.logger.Error("deck operation failed", zap.String("code", code), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (h *httpHandler) handleDeckEvents(c *gin.Context) {
	deck, ok := h.ownedDeck(c)
	if !ok {
		return
	}
	workspaceID := c.GetString(workspaceIDContextKey)

	messages, cancel := h.realtime.Subscribe(c.Request.Context(), workspaceID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	deckID := deck.ID
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"ts": time.Now().UTC().Unix()})
			c.Writer.Flush()
		case message, open := <-messages:
			if !open {
				return
			}
			if message.DeckID != "" && message.DeckID != deckID {
				continue
			}
			c.SSEvent(message.EventType, message.Payload)
			c.Writer.Flush()
		}
	}
}

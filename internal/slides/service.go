package slides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingWorkspace  = errors.New("workspace identifier is required")
	noOpLogger           = zap.NewNop()

	// ErrDeckNotFound indicates the requested deck does not exist.
	ErrDeckNotFound = errors.New("slides: deck not found")
)

// ServiceError carries a stable operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "decks.service.new"
	opCreateDeck  = "decks.create"
	opGetDeck     = "decks.get"
	opListDecks   = "decks.list"
	opDeleteDeck  = "decks.delete"
	opInsertSlide = "decks.insert_slide"
	opEditSlide   = "decks.edit_slide"
	opRemoveSlide = "decks.remove_slide"
	opPersistDeck = "decks.persist"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the deck service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Deck pairs a deck header with its live slide store.
type Deck struct {
	ID          string
	WorkspaceID string
	Title       string
	ThemeID     string
	Store       *Store

	createdAtSeconds int64

	// deleted flips once when the deck is removed. Generation results that
	// land afterwards must not write its rows back.
	deleted atomic.Bool
}

// Theme resolves the deck's palette.
func (d *Deck) Theme() Theme {
	return ThemeByID(d.ThemeID)
}

// Service owns the live deck stores and writes snapshots through to storage
// after every mutation. Loading is lazy: a deck touched for the first time
// after a restart is rebuilt from its persisted rows.
type Service struct {
	repo   *Repository
	clock  func() time.Time
	ids    IDProvider
	logger *zap.Logger

	mu   sync.Mutex
	live map[string]*Deck
}

// NewService constructs the deck service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	repo, err := NewRepository(cfg.Database, clock)
	if err != nil {
		return nil, newServiceError(opServiceNew, "missing_database", err)
	}
	return &Service{
		repo:   repo,
		clock:  clock,
		ids:    cfg.IDProvider,
		logger: logger,
		live:   make(map[string]*Deck),
	}, nil
}

// NewSlideID issues a fresh slide identifier.
func (s *Service) NewSlideID() (string, error) {
	return s.ids.NewID()
}

// CreateDeck registers a freshly generated slide sequence as a new deck.
func (s *Service) CreateDeck(ctx context.Context, workspaceID, themeID string, records []SlideRecord) (*Deck, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, newServiceError(opCreateDeck, "missing_workspace", errMissingWorkspace)
	}
	store, err := NewStore(records)
	if err != nil {
		return nil, newServiceError(opCreateDeck, "invalid_records", err)
	}
	deckID, err := s.ids.NewID()
	if err != nil {
		return nil, newServiceError(opCreateDeck, "id_generation", err)
	}

	deck := &Deck{
		ID:               deckID,
		WorkspaceID:      workspaceID,
		Title:            records[0].Title,
		ThemeID:          ThemeByID(themeID).ID,
		Store:            store,
		createdAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.Persist(ctx, deck); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.live[deckID] = deck
	s.mu.Unlock()

	s.logger.Info("deck created",
		zap.String("deck_id", deckID),
		zap.Int("slides", store.Len()))
	return deck, nil
}

// GetDeck returns the live deck, loading it from storage when necessary.
func (s *Service) GetDeck(ctx context.Context, deckID string) (*Deck, error) {
	s.mu.Lock()
	if deck, ok := s.live[deckID]; ok {
		s.mu.Unlock()
		return deck, nil
	}
	s.mu.Unlock()

	row, records, err := s.repo.LoadDeck(ctx, deckID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opGetDeck, "not_found", ErrDeckNotFound)
	}
	if err != nil {
		return nil, newServiceError(opGetDeck, "load", err)
	}
	store, err := NewStore(records)
	if err != nil {
		return nil, newServiceError(opGetDeck, "corrupt_deck", err)
	}
	deck := &Deck{
		ID:               row.DeckID,
		WorkspaceID:      row.WorkspaceID,
		Title:            row.Title,
		ThemeID:          row.ThemeID,
		Store:            store,
		createdAtSeconds: row.CreatedAtSeconds,
	}

	s.mu.Lock()
	// A concurrent load may have won; reuse its store so mutations converge.
	if existing, ok := s.live[deckID]; ok {
		deck = existing
	} else {
		s.live[deckID] = deck
	}
	s.mu.Unlock()
	return deck, nil
}

// ListDecks returns deck headers owned by the workspace.
func (s *Service) ListDecks(ctx context.Context, workspaceID string) ([]DeckRow, error) {
	rows, err := s.repo.ListDecks(ctx, workspaceID)
	if err != nil {
		return nil, newServiceError(opListDecks, "query", err)
	}
	return rows, nil
}

// DeleteDeck removes the deck from storage and drops its live store.
func (s *Service) DeleteDeck(ctx context.Context, deckID string) error {
	s.mu.Lock()
	deck, live := s.live[deckID]
	delete(s.live, deckID)
	s.mu.Unlock()
	if live {
		// Marked before the rows go so an in-flight Persist cannot re-create
		// them.
		deck.deleted.Store(true)
	}
	if err := s.repo.DeleteDeck(ctx, deckID); err != nil {
		return newServiceError(opDeleteDeck, "delete", err)
	}
	return nil
}

// SlidePatch describes a partial user edit. Nil fields are left untouched.
type SlidePatch struct {
	Kind         *string
	Layout       *string
	Title        *string
	Subtitle     *string
	BodyPoints   *[]string
	SpeakerNotes *string
	AssetPrompt  *string
}

// EditSlide applies a field-level patch to one slide, keyed by id.
func (s *Service) EditSlide(ctx context.Context, deck *Deck, slideID string, patch SlidePatch) (SlideRecord, error) {
	var kind SlideKind
	var layout SlideLayout
	var err error
	if patch.Kind != nil {
		if kind, err = NewSlideKind(*patch.Kind); err != nil {
			return SlideRecord{}, newServiceError(opEditSlide, "invalid_kind", err)
		}
	}
	if patch.Layout != nil {
		if layout, err = NewSlideLayout(*patch.Layout); err != nil {
			return SlideRecord{}, newServiceError(opEditSlide, "invalid_layout", err)
		}
	}

	updated, ok := deck.Store.Update(slideID, func(record SlideRecord) SlideRecord {
		if patch.Kind != nil {
			record.Kind = kind
		}
		if patch.Layout != nil {
			record.Layout = layout
		}
		if patch.Title != nil {
			record.Title = *patch.Title
		}
		if patch.Subtitle != nil {
			record.Subtitle = *patch.Subtitle
		}
		if patch.BodyPoints != nil {
			record.BodyPoints = append([]string(nil), (*patch.BodyPoints)...)
		}
		if patch.SpeakerNotes != nil {
			record.SpeakerNotes = *patch.SpeakerNotes
		}
		if patch.AssetPrompt != nil {
			record.AssetPrompt = *patch.AssetPrompt
		}
		return record
	})
	if !ok {
		return SlideRecord{}, newServiceError(opEditSlide, "not_found", ErrSlideNotFound)
	}
	if err := s.Persist(ctx, deck); err != nil {
		return SlideRecord{}, err
	}
	return updated, nil
}

// InsertSlide adds a placeholder slide behind afterID (or at the end when
// afterID is empty) and returns it.
func (s *Service) InsertSlide(ctx context.Context, deck *Deck, afterID string) (SlideRecord, error) {
	slideID, err := s.ids.NewID()
	if err != nil {
		return SlideRecord{}, newServiceError(opInsertSlide, "id_generation", err)
	}
	record := NewPlaceholderSlide(slideID)
	if err := deck.Store.InsertAfter(afterID, record); err != nil {
		return SlideRecord{}, newServiceError(opInsertSlide, "insert", err)
	}
	if err := s.Persist(ctx, deck); err != nil {
		return SlideRecord{}, err
	}
	return record, nil
}

// RemoveSlide deletes one slide; removing the last slide of a deck is refused.
func (s *Service) RemoveSlide(ctx context.Context, deck *Deck, slideID string) error {
	if err := deck.Store.Delete(slideID); err != nil {
		reason := "delete"
		if errors.Is(err, ErrLastSlide) {
			reason = "last_slide"
		} else if errors.Is(err, ErrSlideNotFound) {
			reason = "not_found"
		}
		return newServiceError(opRemoveSlide, reason, err)
	}
	return s.Persist(ctx, deck)
}

// Persist writes the deck's current snapshot through to storage. Decks
// deleted while generation was still in flight are skipped.
func (s *Service) Persist(ctx context.Context, deck *Deck) error {
	if deck.deleted.Load() {
		return nil
	}
	row := DeckRow{
		DeckID:           deck.ID,
		WorkspaceID:      deck.WorkspaceID,
		Title:            deck.Title,
		ThemeID:          deck.ThemeID,
		CreatedAtSeconds: deck.createdAtSeconds,
	}
	if err := s.repo.SaveSnapshot(ctx, row, deck.Store.Snapshot()); err != nil {
		s.logger.Error("deck persistence failed",
			zap.String("deck_id", deck.ID),
			zap.Error(err))
		return newServiceError(opPersistDeck, "save", err)
	}
	return nil
}

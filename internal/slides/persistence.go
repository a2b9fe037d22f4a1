package slides

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeckRow models the persisted deck header.
type DeckRow struct {
	DeckID           string `gorm:"column:deck_id;primaryKey;size:190;not null"`
	WorkspaceID      string `gorm:"column:workspace_id;size:190;not null;index:idx_decks_workspace"`
	Title            string `gorm:"column:title;size:512;not null"`
	ThemeID          string `gorm:"column:theme_id;size:64;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DeckRow) TableName() string {
	return "decks"
}

// SlideRow models one persisted slide. AssetURL holds a data URI and can be
// large, hence the text column.
type SlideRow struct {
	DeckID           string `gorm:"column:deck_id;primaryKey;size:190;not null"`
	SlideID          string `gorm:"column:slide_id;primaryKey;size:190;not null"`
	Position         int    `gorm:"column:position;not null;index:idx_slides_deck_position,priority:2"`
	Kind             string `gorm:"column:kind;size:32;not null"`
	Layout           string `gorm:"column:layout;size:32;not null"`
	Title            string `gorm:"column:title;size:512;not null"`
	Subtitle         string `gorm:"column:subtitle;size:512"`
	BodyPointsJSON   string `gorm:"column:body_points_json;type:text;not null"`
	SpeakerNotes     string `gorm:"column:speaker_notes;type:text"`
	AssetPrompt      string `gorm:"column:asset_prompt;type:text"`
	AssetURL         string `gorm:"column:asset_url;type:text"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (SlideRow) TableName() string {
	return "deck_slides"
}

var errMissingRepositoryDB = errors.New("slides: repository database handle required")

// Repository persists deck snapshots. The in-memory Store stays authoritative
// while a deck is live; the repository only sees whole snapshots, never
// incremental diffs, so a crash can at worst lose the latest write, not
// interleave two.
type Repository struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(db *gorm.DB, clock func() time.Time) (*Repository, error) {
	if db == nil {
		return nil, errMissingRepositoryDB
	}
	if clock == nil {
		clock = time.Now
	}
	return &Repository{db: db, clock: clock}, nil
}

// SaveSnapshot writes the deck header and the full slide sequence in one
// transaction, replacing whatever was stored before.
func (r *Repository) SaveSnapshot(ctx context.Context, deck DeckRow, records []SlideRecord) error {
	now := r.clock().UTC().Unix()
	deck.UpdatedAtSeconds = now
	if deck.CreatedAtSeconds == 0 {
		deck.CreatedAtSeconds = now
	}

	rows := make([]SlideRow, 0, len(records))
	for position, record := range records {
		row, err := toSlideRow(deck.DeckID, position, record, now)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&deck).Error; err != nil {
			return err
		}
		if err := tx.Where("deck_id = ?", deck.DeckID).Delete(&SlideRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// LoadDeck reads a deck header and its ordered slides.
func (r *Repository) LoadDeck(ctx context.Context, deckID string) (DeckRow, []SlideRecord, error) {
	var deck DeckRow
	if err := r.db.WithContext(ctx).Where("deck_id = ?", deckID).Take(&deck).Error; err != nil {
		return DeckRow{}, nil, err
	}

	var rows []SlideRow
	if err := r.db.WithContext(ctx).
		Where("deck_id = ?", deckID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return DeckRow{}, nil, err
	}

	records := make([]SlideRecord, 0, len(rows))
	for _, row := range rows {
		record, err := fromSlideRow(row)
		if err != nil {
			return DeckRow{}, nil, err
		}
		records = append(records, record)
	}
	return deck, records, nil
}

// ListDecks returns the deck headers owned by a workspace, most recent first.
func (r *Repository) ListDecks(ctx context.Context, workspaceID string) ([]DeckRow, error) {
	var rows []DeckRow
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("updated_at_s DESC").
		Find(&rows).Error
	return rows, err
}

// DeleteDeck removes a deck header and all of its slides.
func (r *Repository) DeleteDeck(ctx context.Context, deckID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deck_id = ?", deckID).Delete(&SlideRow{}).Error; err != nil {
			return err
		}
		return tx.Where("deck_id = ?", deckID).Delete(&DeckRow{}).Error
	})
}

func toSlideRow(deckID string, position int, record SlideRecord, now int64) (SlideRow, error) {
	points := record.BodyPoints
	if points == nil {
		points = []string{}
	}
	encoded, err := json.Marshal(points)
	if err != nil {
		return SlideRow{}, fmt.Errorf("slides: encode body points: %w", err)
	}
	return SlideRow{
		DeckID:           deckID,
		SlideID:          record.ID,
		Position:         position,
		Kind:             string(record.Kind),
		Layout:           string(record.Layout),
		Title:            record.Title,
		Subtitle:         record.Subtitle,
		BodyPointsJSON:   string(encoded),
		SpeakerNotes:     record.SpeakerNotes,
		AssetPrompt:      record.AssetPrompt,
		AssetURL:         record.AssetURL,
		UpdatedAtSeconds: now,
	}, nil
}

func fromSlideRow(row SlideRow) (SlideRecord, error) {
	kind, err := NewSlideKind(row.Kind)
	if err != nil {
		return SlideRecord{}, err
	}
	layout, err := NewSlideLayout(row.Layout)
	if err != nil {
		return SlideRecord{}, err
	}
	var points []string
	if row.BodyPointsJSON != "" {
		if err := json.Unmarshal([]byte(row.BodyPointsJSON), &points); err != nil {
			return SlideRecord{}, fmt.Errorf("slides: decode body points: %w", err)
		}
	}
	return SlideRecord{
		ID:           row.SlideID,
		Kind:         kind,
		Layout:       layout,
		Title:        row.Title,
		Subtitle:     row.Subtitle,
		BodyPoints:   points,
		SpeakerNotes: row.SpeakerNotes,
		AssetPrompt:  row.AssetPrompt,
		AssetURL:     row.AssetURL,
	}, nil
}

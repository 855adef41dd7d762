// Package levels persists formations (levels) and their band members.
package levels

import (
	"context"
	"errors"
	"fmt"

	"github.com/bandfield/marchsim/internal/cache"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/internal/model/convert"
	"github.com/bandfield/marchsim/internal/music"
	"github.com/bandfield/marchsim/internal/sim"
	"github.com/bandfield/marchsim/pkg/core"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLevel = errors.New("invalid level")
	ErrNoChanges    = errors.New("no changes")
)

// Store reads and writes levels through gorm. Reads of single levels go
// through the cache when one is set.
type Store struct {
	db    *gorm.DB
	cache *cache.LevelCache
}

// NewStore creates a store. cache may be nil.
func NewStore(db *gorm.DB, c *cache.LevelCache) *Store {
	return &Store{db: db, cache: c}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// LevelUpdate holds the optional fields of a level update.
type LevelUpdate struct {
	Name            *string `json:"name"`
	Author          *string `json:"author"`
	Description     *string `json:"description"`
	Difficulty      *string `json:"difficulty"`
	MusicTheme      *string `json:"musicTheme"`
	SongTitle       *string `json:"songTitle"`
	Tempo           *int    `json:"tempo"`
	DurationSeconds *int    `json:"durationSeconds"`
}

func (u LevelUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Author != nil {
		cols["author"] = *u.Author
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Difficulty != nil {
		cols["difficulty"] = *u.Difficulty
	}
	if u.MusicTheme != nil {
		cols["music_theme"] = *u.MusicTheme
	}
	if u.SongTitle != nil {
		cols["song_title"] = *u.SongTitle
	}
	if u.Tempo != nil {
		cols["tempo"] = *u.Tempo
	}
	if u.DurationSeconds != nil {
		cols["duration_seconds"] = *u.DurationSeconds
	}
	return cols
}

// ValidateLevel checks the level header and every member.
func ValidateLevel(l core.Level) error {
	if l.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLevel)
	}
	if l.Author == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidLevel)
	}
	for i, m := range l.BandMembers {
		if err := ValidateMember(m); err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
	}
	return nil
}

// ValidateMember applies the same rules a playback session applies to actors.
func ValidateMember(m core.BandMember) error {
	d := sim.Definition{ID: "member", Category: m.Category, Start: m.Start, End: m.End, Speed: m.Speed, Radius: m.Radius}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLevel, err)
	}
	if !m.Category.Valid() {
		return fmt.Errorf("%w: category is required", ErrInvalidLevel)
	}
	return nil
}

// withDefaultTracks gives every member without a track the default for its category.
func withDefaultTracks(members []core.BandMember) []core.BandMember {
	out := make([]core.BandMember, len(members))
	for i, m := range members {
		if len(m.MIDITracks) == 0 {
			m.MIDITracks = []core.MIDITrack{music.DefaultTrack(m.Category)}
		}
		out[i] = m
	}
	return out
}

// CreateLevel inserts a level with its members and their tracks.
func (s *Store) CreateLevel(ctx context.Context, l core.Level) (core.Level, error) {
	if l.Tempo == 0 {
		l.Tempo = music.DefaultTempo
	}
	if l.DurationSeconds == 0 {
		l.DurationSeconds = 60
	}
	if l.Difficulty == "" {
		l.Difficulty = "medium"
	}
	if err := ValidateLevel(l); err != nil {
		return core.Level{}, err
	}
	l.ID = 0
	l.BandMembers = withDefaultTracks(l.BandMembers)
	for i := range l.BandMembers {
		l.BandMembers[i].ID = 0
		l.BandMembers[i].LevelID = 0
	}

	row := convert.CoreToLevel(l)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.Level{}, fmt.Errorf("failed to create level: %w", err)
	}
	return s.GetLevel(ctx, row.ID)
}

func (s *Store) loadLevel(ctx context.Context, id uint) (model.Level, error) {
	var row model.Level
	err := s.db.WithContext(ctx).
		Preload("BandMembers", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("BandMembers.MIDITracks", func(db *gorm.DB) *gorm.DB { return db.Order("track_number, id") }).
		First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, fmt.Errorf("level %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return row, fmt.Errorf("failed to load level %d: %w", id, err)
	}
	return row, nil
}

// GetLevel returns a level with its members and tracks, ordered by id.
func (s *Store) GetLevel(ctx context.Context, id uint) (core.Level, error) {
	if s.cache != nil {
		if l, ok := s.cache.GetLevel(id); ok {
			return l, nil
		}
	}
	row, err := s.loadLevel(ctx, id)
	if err != nil {
		return core.Level{}, err
	}
	l := convert.LevelToCore(row)
	if s.cache != nil {
		s.cache.AddLevel(l)
	}
	return l, nil
}

// ListLevels returns every level, newest first, with members.
func (s *Store) ListLevels(ctx context.Context) ([]core.Level, error) {
	var rows []model.Level
	err := s.db.WithContext(ctx).
		Preload("BandMembers", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	out := make([]core.Level, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.LevelToCore(r))
	}
	return out, nil
}

// UpdateLevel applies the non-nil fields of u.
func (s *Store) UpdateLevel(ctx context.Context, id uint, u LevelUpdate) (core.Level, error) {
	cols := u.columns()
	if len(cols) == 0 {
		return core.Level{}, ErrNoChanges
	}
	if v, ok := cols["name"]; ok && v == "" {
		return core.Level{}, fmt.Errorf("%w: name is required", ErrInvalidLevel)
	}
	if v, ok := cols["author"]; ok && v == "" {
		return core.Level{}, fmt.Errorf("%w: author is required", ErrInvalidLevel)
	}

	res := s.db.WithContext(ctx).Model(&model.Level{ID: id}).Updates(cols)
	if res.Error != nil {
		return core.Level{}, fmt.Errorf("failed to update level %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.Level{}, fmt.Errorf("level %d: %w", id, ErrNotFound)
	}
	s.invalidate(id)
	return s.GetLevel(ctx, id)
}

// DeleteLevel removes a level, its members and their tracks.
func (s *Store) DeleteLevel(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := tx.Model(&model.BandMember{}).Select("id").Where("level_id = ?", id)
		if err := tx.Where("band_member_id IN (?)", members).Delete(&model.MIDITrack{}).Error; err != nil {
			return err
		}
		if err := tx.Where("level_id = ?", id).Delete(&model.BandMember{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Level{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("level %d: %w", id, ErrNotFound)
		}
		return nil
	})
	s.invalidate(id)
	return err
}

// IncrementPlays bumps the play counter of a level.
func (s *Store) IncrementPlays(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&model.Level{ID: id}).UpdateColumn("plays", gorm.Expr("plays + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment plays: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("level %d: %w", id, ErrNotFound)
	}
	if s.cache != nil {
		s.cache.AddPlay(id)
	}
	return nil
}

func (s *Store) invalidate(levelID uint) {
	if s.cache != nil {
		s.cache.Invalidate(levelID)
	}
}

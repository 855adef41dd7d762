package levels

import (
	"context"
	"errors"
	"fmt"

	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/internal/model/convert"
	"github.com/bandfield/marchsim/pkg/core"
	"gorm.io/gorm"
)

// MemberUpdate holds the optional fields of a band member update.
type MemberUpdate struct {
	Name       *string          `json:"name"`
	Instrument *string          `json:"instrument"`
	Category   *core.Category   `json:"instrumentType"`
	Radius     *float64         `json:"radius"`
	Speed      *float64         `json:"speed"`
	Start      *core.Position2D `json:"start"`
	End        *core.Position2D `json:"end"`
}

func (u MemberUpdate) empty() bool {
	return u.Name == nil && u.Instrument == nil && u.Category == nil && u.Radius == nil &&
		u.Speed == nil && u.Start == nil && u.End == nil
}

func (u MemberUpdate) apply(m core.BandMember) core.BandMember {
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Instrument != nil {
		m.Instrument = *u.Instrument
	}
	if u.Category != nil {
		m.Category = *u.Category
	}
	if u.Radius != nil {
		m.Radius = *u.Radius
	}
	if u.Speed != nil {
		m.Speed = *u.Speed
	}
	if u.Start != nil {
		m.Start = *u.Start
	}
	if u.End != nil {
		m.End = *u.End
	}
	return m
}

// AddBandMember validates and inserts a member into a level. A member
// without a track gets the default track of its category.
func (s *Store) AddBandMember(ctx context.Context, levelID uint, m core.BandMember) (core.BandMember, error) {
	if err := ValidateMember(m); err != nil {
		return core.BandMember{}, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Level{}).Where("id = ?", levelID).Count(&count).Error; err != nil {
		return core.BandMember{}, fmt.Errorf("failed to look up level %d: %w", levelID, err)
	}
	if count == 0 {
		return core.BandMember{}, fmt.Errorf("level %d: %w", levelID, ErrNotFound)
	}

	m.ID = 0
	m.LevelID = levelID
	row := convert.CoreToBandMember(withDefaultTracks([]core.BandMember{m})[0])
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.BandMember{}, fmt.Errorf("failed to create band member: %w", err)
	}
	s.invalidate(levelID)
	return s.GetBandMember(ctx, row.ID)
}

// GetBandMember returns a member with its tracks.
func (s *Store) GetBandMember(ctx context.Context, id uint) (core.BandMember, error) {
	row, err := s.loadMember(ctx, id)
	if err != nil {
		return core.BandMember{}, err
	}
	return convert.BandMemberToCore(row), nil
}

func (s *Store) loadMember(ctx context.Context, id uint) (model.BandMember, error) {
	var row model.BandMember
	err := s.db.WithContext(ctx).Preload("MIDITracks").First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, fmt.Errorf("band member %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return row, fmt.Errorf("failed to load band member %d: %w", id, err)
	}
	return row, nil
}

// ListBandMembers returns every member of every level ordered by id.
func (s *Store) ListBandMembers(ctx context.Context) ([]core.BandMember, error) {
	return s.findMembers(ctx, s.db.WithContext(ctx))
}

// MembersByCategory returns the members of one instrument family.
func (s *Store) MembersByCategory(ctx context.Context, c core.Category) ([]core.BandMember, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidLevel, c)
	}
	return s.findMembers(ctx, s.db.WithContext(ctx).Where("category = ?", string(c)))
}

func (s *Store) findMembers(_ context.Context, q *gorm.DB) ([]core.BandMember, error) {
	var rows []model.BandMember
	if err := q.Preload("MIDITracks").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list band members: %w", err)
	}
	out := make([]core.BandMember, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.BandMemberToCore(r))
	}
	return out, nil
}

// UpdateBandMember applies the non-nil fields of u after validating the result.
func (s *Store) UpdateBandMember(ctx context.Context, id uint, u MemberUpdate) (core.BandMember, error) {
	if u.empty() {
		return core.BandMember{}, ErrNoChanges
	}
	row, err := s.loadMember(ctx, id)
	if err != nil {
		return core.BandMember{}, err
	}
	updated := u.apply(convert.BandMemberToCore(row))
	if err := ValidateMember(updated); err != nil {
		return core.BandMember{}, err
	}

	cols := map[string]any{
		"name":       updated.Name,
		"instrument": updated.Instrument,
		"category":   string(updated.Category),
		"radius":     updated.Radius,
		"speed":      updated.Speed,
		"start_pos":  geo.PointFromPosition(updated.Start),
		"end_pos":    geo.PointFromPosition(updated.End),
	}
	if err := s.db.WithContext(ctx).Model(&model.BandMember{ID: id}).Updates(cols).Error; err != nil {
		return core.BandMember{}, fmt.Errorf("failed to update band member %d: %w", id, err)
	}
	s.invalidate(row.LevelID)
	return s.GetBandMember(ctx, id)
}

// UpdatePosition moves a member's start and/or end mark.
func (s *Store) UpdatePosition(ctx context.Context, id uint, start, end *core.Position2D) (core.BandMember, error) {
	if start == nil && end == nil {
		return core.BandMember{}, ErrNoChanges
	}
	return s.UpdateBandMember(ctx, id, MemberUpdate{Start: start, End: end})
}

// DeleteBandMember removes a member and its tracks.
func (s *Store) DeleteBandMember(ctx context.Context, id uint) error {
	row, err := s.loadMember(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("band_member_id = ?", id).Delete(&model.MIDITrack{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.BandMember{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete band member %d: %w", id, err)
	}
	s.invalidate(row.LevelID)
	return nil
}

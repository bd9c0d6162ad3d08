package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

type SettingsRepository interface {
	Get(ctx context.Context) (entity.Settings, error)
	Save(ctx context.Context, s entity.Settings) error
	SetThreshold(ctx context.Context, threshold float64) (entity.Settings, error)
	AddSynonym(ctx context.Context, category, synonym string) (entity.Settings, error)
	RemoveSynonym(ctx context.Context, category, synonym string) (entity.Settings, error)
	AddCategory(ctx context.Context, category string) (entity.Settings, error)
	RemoveCategory(ctx context.Context, category string) (entity.Settings, error)
}

const (
	settingsTable = "settings"
	settingsRowID = 1
)

type settingsRepo struct {
	db     *DB
	logger *slog.Logger
	mu     sync.Mutex // serializes read-modify-write edits
}

func NewSettingsRepository(db *DB, logger *slog.Logger) SettingsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &settingsRepo{db: db, logger: logger}
}

// Get returns the stored settings, or the defaults when none were saved.
func (r *settingsRepo) Get(ctx context.Context) (entity.Settings, error) {
	b := r.db.builder()
	query, args := b.Select("auto_approve_threshold", "material_synonyms", "default_receiver", "custom_instructions").
		From(b.Table(settingsTable)).
		Where(entsql.EQ("id", settingsRowID)).
		Query()

	var (
		s     entity.Settings
		found bool
	)
	err := r.db.query(ctx, query, args, func(rows *entsql.Rows) error {
		var synonyms sql.NullString
		if err := rows.Scan(&s.AutoApproveThreshold, &synonyms, &s.DefaultReceiver, &s.CustomInstructions); err != nil {
			return err
		}
		found = true
		if synonyms.Valid && synonyms.String != "" {
			return json.Unmarshal([]byte(synonyms.String), &s.MaterialSynonyms)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to load settings", "error", err)
		return entity.Settings{}, dbError("SETTINGS_GET", err, "load settings")
	}
	if !found {
		return entity.DefaultSettings(), nil
	}
	if s.MaterialSynonyms == nil {
		s.MaterialSynonyms = map[string][]string{}
	}
	return s, nil
}

func (r *settingsRepo) Save(ctx context.Context, s entity.Settings) error {
	if s.MaterialSynonyms == nil {
		s.MaterialSynonyms = map[string][]string{}
	}
	synonyms, err := json.Marshal(s.MaterialSynonyms)
	if err != nil {
		return common.Errorf("SETTINGS_ENCODE", common.ErrInternal, "encode synonyms: %v", err)
	}
	query, args := r.db.builder().Insert(settingsTable).
		Columns("id", "auto_approve_threshold", "material_synonyms", "default_receiver", "custom_instructions", "updated_at").
		Values(settingsRowID, s.AutoApproveThreshold, string(synonyms), s.DefaultReceiver, s.CustomInstructions, time.Now().UTC()).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := r.db.exec(ctx, query, args); err != nil {
		r.logger.Error("failed to save settings", "error", err)
		return dbError("SETTINGS_SAVE", err, "save settings")
	}
	r.logger.Info("settings saved", "threshold", s.AutoApproveThreshold, "categories", len(s.MaterialSynonyms))
	return nil
}

// SetThreshold rejects values outside 60..99 with ErrValidation.
func (r *settingsRepo) SetThreshold(ctx context.Context, threshold float64) (entity.Settings, error) {
	if !entity.ValidThreshold(threshold) {
		return entity.Settings{}, common.Errorf("INVALID_THRESHOLD", common.ErrValidation,
			"threshold must be between %d and %d", entity.MinAutoApproveThreshold, entity.MaxAutoApproveThreshold)
	}
	return r.edit(ctx, func(s *entity.Settings) { s.AutoApproveThreshold = threshold })
}

func (r *settingsRepo) AddSynonym(ctx context.Context, category, synonym string) (entity.Settings, error) {
	if err := requireNames(category, synonym); err != nil {
		return entity.Settings{}, err
	}
	return r.edit(ctx, func(s *entity.Settings) { s.AddSynonym(category, synonym) })
}

func (r *settingsRepo) RemoveSynonym(ctx context.Context, category, synonym string) (entity.Settings, error) {
	if err := requireNames(category, synonym); err != nil {
		return entity.Settings{}, err
	}
	return r.edit(ctx, func(s *entity.Settings) { s.RemoveSynonym(category, synonym) })
}

func (r *settingsRepo) AddCategory(ctx context.Context, category string) (entity.Settings, error) {
	if err := requireNames(category); err != nil {
		return entity.Settings{}, err
	}
	return r.edit(ctx, func(s *entity.Settings) { s.AddCategory(category) })
}

func (r *settingsRepo) RemoveCategory(ctx context.Context, category string) (entity.Settings, error) {
	if err := requireNames(category); err != nil {
		return entity.Settings{}, err
	}
	return r.edit(ctx, func(s *entity.Settings) { s.RemoveCategory(category) })
}

func (r *settingsRepo) edit(ctx context.Context, fn func(*entity.Settings)) (entity.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.Get(ctx)
	if err != nil {
		return entity.Settings{}, err
	}
	s = s.Clone()
	fn(&s)
	if err := r.Save(ctx, s); err != nil {
		return entity.Settings{}, err
	}
	return s, nil
}

func requireNames(names ...string) error {
	v := common.NewValidator()
	for _, n := range names {
		v.Field("name", n, common.Required)
	}
	return v.Err("INVALID_SETTINGS")
}

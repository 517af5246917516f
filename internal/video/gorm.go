package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Compile-time checks that the GORM stores implement their ports.
var (
	_ Repository        = (*GormRepository)(nil)
	_ TrackRepository   = (*GormTrackRepository)(nil)
	_ ProjectRepository = (*GormProjectRepository)(nil)
)

// OpenDB opens (creating if necessary) the SQLite database at path and
// migrates the record schema.
func OpenDB(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Video{}, &Track{}, &Project{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// CloseDB closes the underlying SQL connection of a GORM handle.
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormRepository is a SQLite-backed implementation of Repository.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a video repository on the given GORM handle.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Save persists a video, replacing any existing record with the same ID.
func (r *GormRepository) Save(ctx context.Context, v *Video) error {
	v.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	return nil
}

// FindByID retrieves a video by ID.
func (r *GormRepository) FindByID(ctx context.Context, id string) (*Video, error) {
	var v Video
	err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find video: %w", err)
	}
	return &v, nil
}

// List returns all videos, newest first.
func (r *GormRepository) List(ctx context.Context) ([]*Video, error) {
	var videos []*Video
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// ListByStatus returns all videos in the given state, newest first.
func (r *GormRepository) ListByStatus(ctx context.Context, status Status) ([]*Video, error) {
	var videos []*Video
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("list videos by status: %w", err)
	}
	return videos, nil
}

// SaveFields updates only the named fields in a single statement, so the
// partial update is atomic at the record level.
func (r *GormRepository) SaveFields(ctx context.Context, v *Video, fields ...string) error {
	// Reject unknown names up front so memory and GORM stores agree.
	probe := &Video{}
	for _, f := range fields {
		if err := copyField(probe, v, f); err != nil {
			return err
		}
	}
	v.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).
		Model(&Video{}).
		Where("id = ?", v.ID).
		Select(append(fields, "UpdatedAt")).
		Updates(v)
	if res.Error != nil {
		return fmt.Errorf("update video fields: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// AppendLog appends one line to the record's generation log inside a
// transaction, so concurrent appends never drop prior content.
func (r *GormRepository) AppendLog(ctx context.Context, v *Video, line string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Video
		if err := tx.First(&current, "id = ?", v.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVideoNotFound
			}
			return err
		}
		updated := appendLogLine(current.GenerationLog, line)
		if err := tx.Model(&Video{}).
			Where("id = ?", v.ID).
			Updates(map[string]any{
				"generation_log": updated,
				"updated_at":     time.Now(),
			}).Error; err != nil {
			return err
		}
		v.GenerationLog = updated
		return nil
	})
	if err != nil && !errors.Is(err, ErrVideoNotFound) {
		return fmt.Errorf("append generation log: %w", err)
	}
	return err
}

// CountByStatus returns the number of videos per status.
func (r *GormRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	type row struct {
		Status Status
		N      int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&Video{}).
		Select("status", "COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count videos by status: %w", err)
	}
	counts := make(map[Status]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// Delete removes a video record.
func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Video{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete video: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// GormTrackRepository is a SQLite-backed implementation of TrackRepository.
type GormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a track repository on the given GORM handle.
func NewGormTrackRepository(db *gorm.DB) *GormTrackRepository {
	return &GormTrackRepository{db: db}
}

// Save persists a track.
func (r *GormTrackRepository) Save(ctx context.Context, t *Track) error {
	t.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		return fmt.Errorf("save track: %w", err)
	}
	return nil
}

// FindByID retrieves a track by ID.
func (r *GormTrackRepository) FindByID(ctx context.Context, id string) (*Track, error) {
	var t Track
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find track: %w", err)
	}
	return &t, nil
}

// List returns all tracks, newest first.
func (r *GormTrackRepository) List(ctx context.Context) ([]*Track, error) {
	var tracks []*Track
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	return tracks, nil
}

// Delete removes a track.
func (r *GormTrackRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Track{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete track: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTrackNotFound
	}
	return nil
}

// GormProjectRepository is a SQLite-backed implementation of ProjectRepository.
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a project repository on the given GORM handle.
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

// Save persists a project.
func (r *GormProjectRepository) Save(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// FindByID retrieves a project by ID.
func (r *GormProjectRepository) FindByID(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &p, nil
}

// List returns all projects, newest first.
func (r *GormProjectRepository) List(ctx context.Context) ([]*Project, error) {
	var projects []*Project
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Delete removes a project.
func (r *GormProjectRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Project{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

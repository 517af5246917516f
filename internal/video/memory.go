package video

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time checks that the memory stores implement their ports.
var (
	_ Repository        = (*MemoryRepository)(nil)
	_ TrackRepository   = (*MemoryTrackRepository)(nil)
	_ ProjectRepository = (*MemoryProjectRepository)(nil)
)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; the GORM store backs production.
type MemoryRepository struct {
	mu     sync.RWMutex
	videos map[string]*Video
}

// NewMemoryRepository creates a new in-memory video repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{videos: make(map[string]*Video)}
}

// Save persists a video. Stores a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.ID] = v.Clone()
	return nil
}

// FindByID retrieves a video by ID. Returns a clone.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	return v.Clone(), nil
}

// List returns all videos, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Video, 0, len(r.videos))
	for _, v := range r.videos {
		result = append(result, v.Clone())
	}
	sortVideos(result)
	return result, nil
}

// ListByStatus returns all videos in the given state, newest first.
func (r *MemoryRepository) ListByStatus(_ context.Context, status Status) ([]*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Video, 0)
	for _, v := range r.videos {
		if v.Status == status {
			result = append(result, v.Clone())
		}
	}
	sortVideos(result)
	return result, nil
}

// SaveFields atomically updates only the named fields of the stored record.
func (r *MemoryRepository) SaveFields(_ context.Context, v *Video, fields ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.videos[v.ID]
	if !ok {
		return ErrVideoNotFound
	}
	for _, f := range fields {
		if err := copyField(stored, v, f); err != nil {
			return err
		}
	}
	stored.UpdatedAt = time.Now()
	return nil
}

// AppendLog appends one line to the stored record's generation log and
// mirrors the result onto v.
func (r *MemoryRepository) AppendLog(_ context.Context, v *Video, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.videos[v.ID]
	if !ok {
		return ErrVideoNotFound
	}
	stored.GenerationLog = appendLogLine(stored.GenerationLog, line)
	stored.UpdatedAt = time.Now()
	v.GenerationLog = stored.GenerationLog
	return nil
}

// CountByStatus returns the number of videos per status.
func (r *MemoryRepository) CountByStatus(_ context.Context) (map[Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Status]int)
	for _, v := range r.videos {
		counts[v.Status]++
	}
	return counts, nil
}

// Delete removes a video record.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[id]; !ok {
		return ErrVideoNotFound
	}
	delete(r.videos, id)
	return nil
}

func sortVideos(videos []*Video) {
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
}

// MemoryTrackRepository is an in-memory implementation of TrackRepository.
type MemoryTrackRepository struct {
	mu     sync.RWMutex
	tracks map[string]*Track
}

// NewMemoryTrackRepository creates a new in-memory track repository.
func NewMemoryTrackRepository() *MemoryTrackRepository {
	return &MemoryTrackRepository{tracks: make(map[string]*Track)}
}

// Save persists a track.
func (r *MemoryTrackRepository) Save(_ context.Context, t *Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *t
	r.tracks[t.ID] = &clone
	return nil
}

// FindByID retrieves a track by ID.
func (r *MemoryTrackRepository) FindByID(_ context.Context, id string) (*Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks[id]
	if !ok {
		return nil, ErrTrackNotFound
	}
	clone := *t
	return &clone, nil
}

// List returns all tracks, newest first.
func (r *MemoryTrackRepository) List(_ context.Context) ([]*Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Track, 0, len(r.tracks))
	for _, t := range r.tracks {
		clone := *t
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Delete removes a track.
func (r *MemoryTrackRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tracks[id]; !ok {
		return ErrTrackNotFound
	}
	delete(r.tracks, id)
	return nil
}

// MemoryProjectRepository is an in-memory implementation of ProjectRepository.
type MemoryProjectRepository struct {
	mu       sync.RWMutex
	projects map[string]*Project
}

// NewMemoryProjectRepository creates a new in-memory project repository.
func NewMemoryProjectRepository() *MemoryProjectRepository {
	return &MemoryProjectRepository{projects: make(map[string]*Project)}
}

// Save persists a project.
func (r *MemoryProjectRepository) Save(_ context.Context, p *Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = cloneProject(p)
	return nil
}

// FindByID retrieves a project by ID.
func (r *MemoryProjectRepository) FindByID(_ context.Context, id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return cloneProject(p), nil
}

// List returns all projects, newest first.
func (r *MemoryProjectRepository) List(_ context.Context) ([]*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		result = append(result, cloneProject(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Delete removes a project.
func (r *MemoryProjectRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(r.projects, id)
	return nil
}

func cloneProject(p *Project) *Project {
	clone := *p
	clone.VideoIDs = make([]string, len(p.VideoIDs))
	copy(clone.VideoIDs, p.VideoIDs)
	return &clone
}

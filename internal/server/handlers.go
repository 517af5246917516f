package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/avelarde/musicvideo-api/internal/generation"
	"github.com/avelarde/musicvideo-api/internal/storage"
	"github.com/avelarde/musicvideo-api/internal/style"
	"github.com/avelarde/musicvideo-api/internal/video"
)

const timeFormat = time.RFC3339

// recentFailureLimit caps the failed records shown on the dashboard.
const recentFailureLimit = 5

// Generator runs local generation attempts.
type Generator interface {
	Generate(ctx context.Context, videoID string) (*video.Video, error)
	CreateForTrack(ctx context.Context, trackID, title string) (*video.Video, error)
}

// RemoteGenerator runs generation attempts through an external provider.
type RemoteGenerator interface {
	Generate(ctx context.Context, videoID string) (*video.Video, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	videos    video.Repository
	tracks    video.TrackRepository
	projects  video.ProjectRepository
	generator Generator
	remote    RemoteGenerator // nil when no provider is configured
	store     storage.Store   // nil when output cleanup is disabled
	validator *validator.Validate
	logger    *slog.Logger
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithRemoteGenerator enables provider-backed generation.
func WithRemoteGenerator(remote RemoteGenerator) HandlerOption {
	return func(h *Handlers) {
		h.remote = remote
	}
}

// WithStore enables output blob cleanup when videos are deleted.
func WithStore(store storage.Store) HandlerOption {
	return func(h *Handlers) {
		h.store = store
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(videos video.Repository, tracks video.TrackRepository, projects video.ProjectRepository, generator Generator, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		videos:    videos,
		tracks:    tracks,
		projects:  projects,
		generator: generator,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Dashboard handles GET /dashboard requests.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.videos.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to count videos", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load dashboard", "DASHBOARD_FAILED")
		return
	}

	statusCounts := make(map[string]int, len(counts))
	total := 0
	for status, n := range counts {
		statusCounts[string(status)] = n
		total += n
	}

	failed, err := h.videos.ListByStatus(r.Context(), video.StatusFailed)
	if err != nil {
		h.logger.Error("failed to list failed videos", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load dashboard", "DASHBOARD_FAILED")
		return
	}
	if len(failed) > recentFailureLimit {
		failed = failed[:recentFailureLimit]
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		StatusCounts:   statusCounts,
		TotalVideos:    total,
		RecentFailures: videoResponses(failed),
	})
}

// ListStyles handles GET /styles requests.
func (h *Handlers) ListStyles(w http.ResponseWriter, r *http.Request) {
	styles := style.All()
	out := make([]StyleResponse, 0, len(styles))
	for _, s := range styles {
		out = append(out, StyleResponse{Key: s.Key, Label: s.Label, Prompt: s.DefaultPrompt})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListTracks handles GET /tracks requests.
func (h *Handlers) ListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.tracks.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list tracks", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list tracks", "TRACK_LIST_FAILED")
		return
	}
	out := make([]TrackResponse, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, trackResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateTrack handles POST /tracks requests.
func (h *Handlers) CreateTrack(w http.ResponseWriter, r *http.Request) {
	var req CreateTrackRequest
	if !h.decode(w, r, &req) {
		return
	}

	t := video.NewTrack(req.Title, req.AudioPath)
	t.Artist = req.Artist
	t.Lyrics = req.Lyrics
	t.Language = req.Language
	t.BPM = req.BPM

	if err := h.tracks.Save(r.Context(), t); err != nil {
		h.logger.Error("failed to save track", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create track", "TRACK_CREATE_FAILED")
		return
	}

	h.logger.Info("track created", slog.String("track_id", t.ID))
	writeJSON(w, http.StatusCreated, trackResponse(t))
}

// GetTrack handles GET /tracks/{id} requests.
func (h *Handlers) GetTrack(w http.ResponseWriter, r *http.Request) {
	t, ok := h.findTrack(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, trackResponse(t))
}

// UpdateTrack handles PUT /tracks/{id} requests.
func (h *Handlers) UpdateTrack(w http.ResponseWriter, r *http.Request) {
	t, ok := h.findTrack(w, r)
	if !ok {
		return
	}

	var req UpdateTrackRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Artist != nil {
		t.Artist = *req.Artist
	}
	if req.AudioPath != nil {
		t.AudioPath = *req.AudioPath
	}
	if req.Lyrics != nil {
		t.Lyrics = *req.Lyrics
	}
	if req.Language != nil {
		t.Language = *req.Language
	}
	if req.BPM != nil {
		t.BPM = *req.BPM
	}
	t.UpdatedAt = time.Now().UTC()

	if err := h.tracks.Save(r.Context(), t); err != nil {
		h.logger.Error("failed to update track", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update track", "TRACK_UPDATE_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, trackResponse(t))
}

// DeleteTrack handles DELETE /tracks/{id} requests.
func (h *Handlers) DeleteTrack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.tracks.Delete(r.Context(), id); err != nil {
		if errors.Is(err, video.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, "track not found", "TRACK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete track", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete track", "TRACK_DELETE_FAILED")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateForTrack handles POST /tracks/{id}/generate requests. It creates
// a video record for the track and runs one generation attempt.
func (h *Handlers) GenerateForTrack(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("id")

	var req GenerateForTrackRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}

	v, err := h.generator.CreateForTrack(r.Context(), trackID, req.Title)
	if err != nil {
		if errors.Is(err, video.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, "track not found", "TRACK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to create video for track",
			slog.String("track_id", trackID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create video", "VIDEO_CREATE_FAILED")
		return
	}

	if req.Style != "" || req.ExtraPrompt != "" {
		v.Style = req.Style
		v.ExtraPrompt = req.ExtraPrompt
		if err := h.videos.Save(r.Context(), v); err != nil {
			h.logger.Error("failed to save video", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to create video", "VIDEO_CREATE_FAILED")
			return
		}
	}

	h.runGeneration(w, r, h.generator, v.ID)
}

// ListVideos handles GET /videos requests. An optional ?status= query
// filters by status.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	var (
		videos []*video.Video
		err    error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := video.Status(raw)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown status", "INVALID_STATUS")
			return
		}
		videos, err = h.videos.ListByStatus(r.Context(), status)
	} else {
		videos, err = h.videos.List(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list videos", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list videos", "VIDEO_LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, videoResponses(videos))
}

// PendingVideos handles GET /videos/pending requests.
func (h *Handlers) PendingVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videos.ListByStatus(r.Context(), video.StatusPending)
	if err != nil {
		h.logger.Error("failed to list pending videos", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list videos", "VIDEO_LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, videoResponses(videos))
}

// CreateVideo handles POST /videos requests.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.tracks.FindByID(r.Context(), req.TrackID); err != nil {
		if errors.Is(err, video.ErrTrackNotFound) {
			writeError(w, http.StatusBadRequest, "track not found", "TRACK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to look up track", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create video", "VIDEO_CREATE_FAILED")
		return
	}

	v := video.New(req.TrackID, req.Title)
	v.Description = req.Description
	v.BackgroundPath = req.BackgroundPath
	v.Style = req.Style
	v.StylePrompt = req.StylePrompt
	v.ExtraPrompt = req.ExtraPrompt
	v.Tags = req.Tags
	v.Mood = req.Mood

	if err := h.videos.Save(r.Context(), v); err != nil {
		h.logger.Error("failed to save video", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create video", "VIDEO_CREATE_FAILED")
		return
	}

	h.logger.Info("video created",
		slog.String("video_id", v.ID),
		slog.String("track_id", v.TrackID),
	)
	writeJSON(w, http.StatusCreated, videoResponse(v))
}

// GetVideo handles GET /videos/{id} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	v, ok := h.findVideo(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, videoResponse(v))
}

// UpdateVideo handles PUT /videos/{id} requests.
func (h *Handlers) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	v, ok := h.findVideo(w, r)
	if !ok {
		return
	}

	var req UpdateVideoRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Title != nil {
		v.Title = *req.Title
	}
	if req.Description != nil {
		v.Description = *req.Description
	}
	if req.BackgroundPath != nil {
		v.BackgroundPath = *req.BackgroundPath
	}
	if req.Style != nil {
		v.Style = *req.Style
	}
	if req.StylePrompt != nil {
		v.StylePrompt = *req.StylePrompt
	}
	if req.ExtraPrompt != nil {
		v.ExtraPrompt = *req.ExtraPrompt
	}
	if req.Tags != nil {
		v.Tags = *req.Tags
	}
	if req.Mood != nil {
		v.Mood = *req.Mood
	}

	if err := h.videos.Save(r.Context(), v); err != nil {
		h.logger.Error("failed to update video", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update video", "VIDEO_UPDATE_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, videoResponse(v))
}

// DeleteVideo handles DELETE /videos/{id} requests.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, ok := h.findVideo(w, r)
	if !ok {
		return
	}

	if err := h.videos.Delete(r.Context(), id); err != nil {
		if errors.Is(err, video.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete video", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete video", "VIDEO_DELETE_FAILED")
		return
	}

	// Best effort: the record is gone either way.
	if h.store != nil && v.OutputPath != "" {
		if err := h.store.Remove(v.OutputPath); err != nil {
			h.logger.Warn("failed to remove video output",
				slog.String("video_id", id),
				slog.String("error", err.Error()))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// GenerateVideo handles POST /videos/{id}/generate requests.
func (h *Handlers) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	h.runGeneration(w, r, h.generator, r.PathValue("id"))
}

// GenerateVideoRemote handles POST /videos/{id}/generate-remote requests.
func (h *Handlers) GenerateVideoRemote(w http.ResponseWriter, r *http.Request) {
	if h.remote == nil {
		writeError(w, http.StatusNotImplemented, "no AI provider configured", "PROVIDER_NOT_CONFIGURED")
		return
	}
	h.runGeneration(w, r, h.remote, r.PathValue("id"))
}

// UpdateVideoStatus handles POST /videos/{id}/status requests. The change
// is validated by the record's transition table.
func (h *Handlers) UpdateVideoStatus(w http.ResponseWriter, r *http.Request) {
	v, ok := h.findVideo(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	target := video.Status(req.Status)
	if !target.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown status", "INVALID_STATUS")
		return
	}
	if err := v.TransitionTo(target); err != nil {
		writeError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
		return
	}

	if err := h.videos.SaveFields(r.Context(), v, video.FieldStatus); err != nil {
		h.logger.Error("failed to update status", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update status", "STATUS_UPDATE_FAILED")
		return
	}

	h.logger.Info("video status changed",
		slog.String("video_id", v.ID),
		slog.String("status", string(v.Status)),
	)
	writeJSON(w, http.StatusOK, videoResponse(v))
}

// ListProjects handles GET /projects requests.
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list projects", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list projects", "PROJECT_LIST_FAILED")
		return
	}
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateProject handles POST /projects requests.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := video.NewProject(req.Name)
	p.Description = req.Description
	p.VideoIDs = req.VideoIDs

	if err := h.projects.Save(r.Context(), p); err != nil {
		h.logger.Error("failed to save project", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create project", "PROJECT_CREATE_FAILED")
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse(p))
}

// GetProject handles GET /projects/{id} requests.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.findProject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectResponse(p))
}

// UpdateProject handles PUT /projects/{id} requests.
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.findProject(w, r)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.VideoIDs != nil {
		p.VideoIDs = *req.VideoIDs
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	p.UpdatedAt = time.Now().UTC()

	if err := h.projects.Save(r.Context(), p); err != nil {
		h.logger.Error("failed to update project", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update project", "PROJECT_UPDATE_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, projectResponse(p))
}

// DeleteProject handles DELETE /projects/{id} requests.
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.projects.Delete(r.Context(), id); err != nil {
		if errors.Is(err, video.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found", "PROJECT_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete project", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete project", "PROJECT_DELETE_FAILED")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runGeneration runs one synchronous generation attempt and writes the
// terminal record. Failures of the attempt itself come back in the record;
// only caller mistakes map to error statuses.
func (h *Handlers) runGeneration(w http.ResponseWriter, r *http.Request, gen RemoteGenerator, videoID string) {
	v, err := gen.Generate(r.Context(), videoID)
	if err != nil {
		switch {
		case errors.Is(err, video.ErrVideoNotFound):
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		case errors.Is(err, generation.ErrGenerationInProgress):
			writeError(w, http.StatusConflict, "generation already in progress", "GENERATION_IN_PROGRESS")
		case errors.Is(err, video.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
		default:
			h.logger.Error("generation failed",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "generation failed", "GENERATION_FAILED")
		}
		return
	}
	writeJSON(w, http.StatusOK, videoResponse(v))
}

// decode parses and validates a JSON request body. It writes the error
// response itself and reports whether decoding succeeded.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) findTrack(w http.ResponseWriter, r *http.Request) (*video.Track, bool) {
	t, err := h.tracks.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, video.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, "track not found", "TRACK_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get track", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get track", "TRACK_FETCH_FAILED")
		return nil, false
	}
	return t, true
}

func (h *Handlers) findVideo(w http.ResponseWriter, r *http.Request) (*video.Video, bool) {
	v, err := h.videos.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, video.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get video", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get video", "VIDEO_FETCH_FAILED")
		return nil, false
	}
	return v, true
}

func (h *Handlers) findProject(w http.ResponseWriter, r *http.Request) (*video.Project, bool) {
	p, err := h.projects.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, video.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found", "PROJECT_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get project", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get project", "PROJECT_FETCH_FAILED")
		return nil, false
	}
	return p, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

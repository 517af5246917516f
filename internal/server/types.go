// Package server provides the HTTP server for the music video API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/avelarde/musicvideo-api/internal/video"

// CreateTrackRequest is the HTTP request body for creating an audio track.
type CreateTrackRequest struct {
	// Title is the track title.
	Title string `json:"title" validate:"required,max=200"`
	// Artist is the performing artist, optional.
	Artist string `json:"artist" validate:"max=200"`
	// AudioPath locates the audio file relative to the media root.
	AudioPath string `json:"audio_path" validate:"required"`
	// Lyrics is the full lyric text, optional.
	Lyrics string `json:"lyrics"`
	// Language is the lyric language code, optional.
	Language string `json:"language" validate:"max=16"`
	// BPM is the track tempo, optional.
	BPM int `json:"bpm" validate:"min=0,max=400"`
}

// UpdateTrackRequest is the HTTP request body for updating an audio track.
// Nil fields are left unchanged.
type UpdateTrackRequest struct {
	Title     *string `json:"title" validate:"omitempty,max=200"`
	Artist    *string `json:"artist" validate:"omitempty,max=200"`
	AudioPath *string `json:"audio_path"`
	Lyrics    *string `json:"lyrics"`
	Language  *string `json:"language" validate:"omitempty,max=16"`
	BPM       *int    `json:"bpm" validate:"omitempty,min=0,max=400"`
}

// CreateVideoRequest is the HTTP request body for creating a video record.
type CreateVideoRequest struct {
	// TrackID references the audio track to generate from.
	TrackID string `json:"track_id" validate:"required"`
	// Title is the video title.
	Title string `json:"title" validate:"required,max=200"`
	// Description is free-form, optional.
	Description string `json:"description"`
	// BackgroundPath locates an optional background clip relative to the
	// media root.
	BackgroundPath string `json:"background_path"`
	// Style selects an entry from the style catalogue.
	Style string `json:"style" validate:"max=64"`
	// StylePrompt overrides the style's default description.
	StylePrompt string `json:"style_prompt"`
	// ExtraPrompt carries additional generation instructions.
	ExtraPrompt string `json:"extra_prompt"`
	// Tags is a free-form comma-separated tag list.
	Tags string `json:"tags" validate:"max=500"`
	// Mood is a free-form mood label.
	Mood string `json:"mood" validate:"max=100"`
}

// UpdateVideoRequest is the HTTP request body for updating a video record.
// Nil fields are left unchanged.
type UpdateVideoRequest struct {
	Title          *string `json:"title" validate:"omitempty,max=200"`
	Description    *string `json:"description"`
	BackgroundPath *string `json:"background_path"`
	Style          *string `json:"style" validate:"omitempty,max=64"`
	StylePrompt    *string `json:"style_prompt"`
	ExtraPrompt    *string `json:"extra_prompt"`
	Tags           *string `json:"tags" validate:"omitempty,max=500"`
	Mood           *string `json:"mood" validate:"omitempty,max=100"`
}

// UpdateStatusRequest is the HTTP request body for a manual status change.
type UpdateStatusRequest struct {
	// Status is the target status; the transition table decides whether
	// the change is legal.
	Status string `json:"status" validate:"required"`
}

// GenerateForTrackRequest is the HTTP request body for generating a video
// straight from a track.
type GenerateForTrackRequest struct {
	// Title for the created video record; defaults from the track title.
	Title string `json:"title" validate:"max=200"`
	// Style selects an entry from the style catalogue.
	Style string `json:"style" validate:"max=64"`
	// ExtraPrompt carries additional generation instructions.
	ExtraPrompt string `json:"extra_prompt"`
}

// CreateProjectRequest is the HTTP request body for creating a project.
type CreateProjectRequest struct {
	// Name is the project name.
	Name string `json:"name" validate:"required,max=200"`
	// Description is free-form, optional.
	Description string `json:"description"`
	// VideoIDs lists the videos grouped under the project.
	VideoIDs []string `json:"video_ids"`
}

// UpdateProjectRequest is the HTTP request body for updating a project.
// Nil fields are left unchanged.
type UpdateProjectRequest struct {
	Name        *string   `json:"name" validate:"omitempty,max=200"`
	Description *string   `json:"description"`
	VideoIDs    *[]string `json:"video_ids"`
	IsActive    *bool     `json:"is_active"`
}

// TrackResponse is the HTTP representation of an audio track.
type TrackResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	AudioPath string `json:"audio_path"`
	Lyrics    string `json:"lyrics,omitempty"`
	Language  string `json:"language,omitempty"`
	BPM       int    `json:"bpm,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// VideoResponse is the HTTP representation of a video record.
type VideoResponse struct {
	ID              string `json:"id"`
	TrackID         string `json:"track_id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	BackgroundPath  string `json:"background_path,omitempty"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	OutputPath      string `json:"output_path,omitempty"`
	OutputURL       string `json:"output_url,omitempty"`
	FileSizeBytes   int64  `json:"file_size_bytes,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ErrorCode       string `json:"error_code,omitempty"`
	GenerationLog   string `json:"generation_log,omitempty"`
	Style           string `json:"style,omitempty"`
	StylePrompt     string `json:"style_prompt,omitempty"`
	ExtraPrompt     string `json:"extra_prompt,omitempty"`
	PromptUsed      string `json:"prompt_used,omitempty"`
	Tags            string `json:"tags,omitempty"`
	Mood            string `json:"mood,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// ProjectResponse is the HTTP representation of a project.
type ProjectResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	VideoIDs    []string `json:"video_ids"`
	IsActive    bool     `json:"is_active"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// StyleResponse is one entry of the style catalogue.
type StyleResponse struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// DashboardResponse summarises record state for the dashboard.
type DashboardResponse struct {
	// StatusCounts maps each status to the number of records in it.
	StatusCounts map[string]int `json:"status_counts"`
	// TotalVideos is the total number of video records.
	TotalVideos int `json:"total_videos"`
	// RecentFailures lists the most recent failed records.
	RecentFailures []VideoResponse `json:"recent_failures"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func trackResponse(t *video.Track) TrackResponse {
	return TrackResponse{
		ID:        t.ID,
		Title:     t.Title,
		Artist:    t.Artist,
		AudioPath: t.AudioPath,
		Lyrics:    t.Lyrics,
		Language:  t.Language,
		BPM:       t.BPM,
		CreatedAt: t.CreatedAt.Format(timeFormat),
		UpdatedAt: t.UpdatedAt.Format(timeFormat),
	}
}

func videoResponse(v *video.Video) VideoResponse {
	return VideoResponse{
		ID:              v.ID,
		TrackID:         v.TrackID,
		Title:           v.Title,
		Description:     v.Description,
		BackgroundPath:  v.BackgroundPath,
		Status:          string(v.Status),
		Progress:        v.Progress,
		OutputPath:      v.OutputPath,
		OutputURL:       v.OutputURL,
		FileSizeBytes:   v.FileSizeBytes,
		DurationSeconds: v.DurationSeconds,
		Resolution:      v.Resolution,
		AspectRatio:     v.AspectRatio,
		ErrorMessage:    v.ErrorMessage,
		ErrorCode:       v.ErrorCode,
		GenerationLog:   v.GenerationLog,
		Style:           v.Style,
		StylePrompt:     v.StylePrompt,
		ExtraPrompt:     v.ExtraPrompt,
		PromptUsed:      v.PromptUsed,
		Tags:            v.Tags,
		Mood:            v.Mood,
		CreatedAt:       v.CreatedAt.Format(timeFormat),
		UpdatedAt:       v.UpdatedAt.Format(timeFormat),
	}
}

func videoResponses(videos []*video.Video) []VideoResponse {
	out := make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, videoResponse(v))
	}
	return out
}

func projectResponse(p *video.Project) ProjectResponse {
	ids := p.VideoIDs
	if ids == nil {
		ids = []string{}
	}
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		VideoIDs:    ids,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt.Format(timeFormat),
		UpdatedAt:   p.UpdatedAt.Format(timeFormat),
	}
}

// Package video provides the Video aggregate for tracking music video
// generation jobs, the AudioTrack and Project records it relates to, and
// repository interfaces for persistence.
//
// A Video record is owned by exactly one caller between load and save; the
// generation orchestrator is the only writer of status, progress, error and
// output fields once an attempt starts.
package video

import (
	"errors"
	"time"

	"github.com/avelarde/musicvideo-api/internal/video/id"
)

// Status represents the current state of a Video record.
type Status string

const (
	// StatusDraft indicates the record was created but not yet queued.
	StatusDraft Status = "draft"
	// StatusPending indicates the record is waiting for generation.
	StatusPending Status = "pending"
	// StatusProcessing indicates a generation attempt is in flight.
	StatusProcessing Status = "processing"
	// StatusReady indicates generation finished and the output is attached.
	StatusReady Status = "ready"
	// StatusFailed indicates the last generation attempt failed.
	StatusFailed Status = "failed"
	// StatusArchived indicates the record was archived by a user.
	StatusArchived Status = "archived"
)

// IsValid returns true if the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusProcessing, StatusReady, StatusFailed, StatusArchived:
		return true
	default:
		return false
	}
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// Processing is entered only by the orchestrator and must leave to exactly
// one of ready or failed. Ready and failed records may be regenerated
// (back to processing) or archived.
var validTransitions = map[Status][]Status{
	StatusDraft:      {StatusPending, StatusProcessing, StatusArchived},
	StatusPending:    {StatusDraft, StatusProcessing, StatusArchived},
	StatusProcessing: {StatusReady, StatusFailed},
	StatusReady:      {StatusProcessing, StatusArchived},
	StatusFailed:     {StatusProcessing, StatusArchived},
	StatusArchived:   {StatusDraft},
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Video represents one audio-to-video rendering job tracked persistently.
type Video struct {
	// ID is the unique identifier for this record.
	ID string `gorm:"primaryKey" json:"id"`
	// TrackID references the audio track providing the required audio input.
	TrackID string `gorm:"index" json:"track_id"`
	// Title is free text set by the caller.
	Title string `json:"title"`
	// Description is free text set by the caller.
	Description string `json:"description"`
	// BackgroundPath is the optional background clip, relative to the media
	// root. Empty means the configured fallback policy applies.
	BackgroundPath string `json:"background_path"`
	// Status is the current lifecycle state.
	Status Status `gorm:"index" json:"status"`
	// Progress is the generation progress percentage (0-100).
	Progress int `json:"progress"`
	// OutputPath is the rendered file, relative to the media root.
	// Unset until the record reaches ready.
	OutputPath string `json:"output_path"`
	// OutputURL is the remote delivery URL when S3 upload is configured.
	OutputURL string `json:"output_url"`
	// FileSizeBytes is the byte length of the rendered artifact.
	FileSizeBytes int64 `json:"file_size_bytes"`
	// DurationSeconds is the composed duration, truncated to whole seconds.
	DurationSeconds int `json:"duration_seconds"`
	// Resolution is the output size formatted as "<w>x<h>".
	Resolution string `json:"resolution"`
	// AspectRatio is the reduced width:height ratio, e.g. "16:9".
	AspectRatio string `json:"aspect_ratio"`
	// ErrorMessage is the human-readable cause of the last failure.
	ErrorMessage string `json:"error_message"`
	// ErrorCode is the machine-readable tag of the last failure.
	ErrorCode string `json:"error_code"`
	// GenerationLog is an append-only sequence of timestamped lines,
	// separated by single newlines. Never truncated.
	GenerationLog string `json:"generation_log"`
	// Style selects an entry from the style catalogue.
	Style string `json:"style"`
	// StylePrompt overrides the style's default description when set.
	StylePrompt string `json:"style_prompt"`
	// ExtraPrompt holds free-text instructions from the caller.
	ExtraPrompt string `json:"extra_prompt"`
	// PromptUsed is the deterministic prompt recorded for audit purposes.
	PromptUsed string `json:"prompt_used"`
	// Tags is free-form comma-separated metadata.
	Tags string `json:"tags"`
	// Mood is optional cosmetic metadata.
	Mood string `json:"mood"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a new Video with a generated ID and initial draft status.
func New(trackID, title string) *Video {
	now := time.Now()
	return &Video{
		ID:        id.Generate("vid"),
		TrackID:   trackID,
		Title:     title,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a new Video with the specified ID.
// Useful for testing or when the ID is externally generated.
func NewWithID(videoID, trackID, title string) *Video {
	v := New(trackID, title)
	v.ID = videoID
	return v
}

// TransitionTo attempts to change the status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (v *Video) TransitionTo(status Status) error {
	if !CanTransition(v.Status, status) {
		return ErrInvalidTransition
	}
	v.Status = status
	v.UpdatedAt = time.Now()
	return nil
}

// BeginProcessing moves the record into processing, resets progress to the
// initial in-flight value and clears the error fields from any prior attempt.
func (v *Video) BeginProcessing() error {
	if err := v.TransitionTo(StatusProcessing); err != nil {
		return err
	}
	v.Progress = 10
	v.ErrorMessage = ""
	v.ErrorCode = ""
	return nil
}

// MarkReady records the output artifact and moves the record to ready.
func (v *Video) MarkReady(outputPath string, sizeBytes int64, durationSec int, resolution, aspectRatio string) error {
	if err := v.TransitionTo(StatusReady); err != nil {
		return err
	}
	v.OutputPath = outputPath
	v.FileSizeBytes = sizeBytes
	v.DurationSeconds = durationSec
	v.Resolution = resolution
	v.AspectRatio = aspectRatio
	v.Progress = 100
	return nil
}

// MarkFailed records the failure cause and moves the record to failed.
func (v *Video) MarkFailed(code, message string) error {
	if err := v.TransitionTo(StatusFailed); err != nil {
		return err
	}
	v.ErrorCode = code
	v.ErrorMessage = message
	v.Progress = 0
	return nil
}

// IsTerminal returns true if the record is in a terminal generation state:
// ready or failed. No further orchestrator-driven transition occurs without
// a fresh generation attempt.
func (v *Video) IsTerminal() bool {
	return v.Status == StatusReady || v.Status == StatusFailed
}

// Clone creates a copy of the record for safe reads across goroutines.
func (v *Video) Clone() *Video {
	clone := *v
	return &clone
}

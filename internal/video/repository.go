package video

import (
	"context"
	"errors"
)

// Sentinel errors for repository lookups.
var (
	// ErrVideoNotFound is returned when a video cannot be found by ID.
	ErrVideoNotFound = errors.New("video not found")
	// ErrTrackNotFound is returned when a track cannot be found by ID.
	ErrTrackNotFound = errors.New("track not found")
	// ErrProjectNotFound is returned when a project cannot be found by ID.
	ErrProjectNotFound = errors.New("project not found")
	// ErrUnknownField is returned when SaveFields receives a field name
	// that is not part of the orchestrator-writable schema.
	ErrUnknownField = errors.New("unknown field name")
)

// Field names accepted by Repository.SaveFields. Every field always exists
// on the record; there is no field-presence probing.
const (
	FieldStatus          = "Status"
	FieldProgress        = "Progress"
	FieldOutputPath      = "OutputPath"
	FieldOutputURL       = "OutputURL"
	FieldFileSizeBytes   = "FileSizeBytes"
	FieldDurationSeconds = "DurationSeconds"
	FieldResolution      = "Resolution"
	FieldAspectRatio     = "AspectRatio"
	FieldErrorMessage    = "ErrorMessage"
	FieldErrorCode       = "ErrorCode"
	FieldStylePrompt     = "StylePrompt"
	FieldPromptUsed      = "PromptUsed"
)

// Repository defines the persistence port for video records.
type Repository interface {
	// Save persists a video. If the record already exists it is replaced.
	Save(ctx context.Context, v *Video) error

	// FindByID retrieves a video by its unique identifier.
	// Returns ErrVideoNotFound if the record does not exist.
	FindByID(ctx context.Context, id string) (*Video, error)

	// List returns all videos, newest first.
	List(ctx context.Context) ([]*Video, error)

	// ListByStatus returns all videos in the given state, newest first.
	ListByStatus(ctx context.Context, status Status) ([]*Video, error)

	// SaveFields atomically updates only the named fields of the record,
	// taking their values from v. Field names are the Field* constants.
	SaveFields(ctx context.Context, v *Video, fields ...string) error

	// AppendLog appends one line to the record's generation log, separated
	// from prior content by a single newline. Prior content is never
	// altered or truncated. The in-memory record v is updated to match.
	AppendLog(ctx context.Context, v *Video, line string) error

	// CountByStatus returns the number of videos per status.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// Delete removes a video record.
	// Returns ErrVideoNotFound if the record does not exist.
	Delete(ctx context.Context, id string) error
}

// TrackRepository defines the persistence port for audio tracks.
type TrackRepository interface {
	Save(ctx context.Context, t *Track) error
	FindByID(ctx context.Context, id string) (*Track, error)
	List(ctx context.Context) ([]*Track, error)
	Delete(ctx context.Context, id string) error
}

// ProjectRepository defines the persistence port for projects.
type ProjectRepository interface {
	Save(ctx context.Context, p *Project) error
	FindByID(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Delete(ctx context.Context, id string) error
}

// copyField copies the named field from src to dst.
// Returns ErrUnknownField for names outside the writable schema.
func copyField(dst, src *Video, field string) error {
	switch field {
	case FieldStatus:
		dst.Status = src.Status
	case FieldProgress:
		dst.Progress = src.Progress
	case FieldOutputPath:
		dst.OutputPath = src.OutputPath
	case FieldOutputURL:
		dst.OutputURL = src.OutputURL
	case FieldFileSizeBytes:
		dst.FileSizeBytes = src.FileSizeBytes
	case FieldDurationSeconds:
		dst.DurationSeconds = src.DurationSeconds
	case FieldResolution:
		dst.Resolution = src.Resolution
	case FieldAspectRatio:
		dst.AspectRatio = src.AspectRatio
	case FieldErrorMessage:
		dst.ErrorMessage = src.ErrorMessage
	case FieldErrorCode:
		dst.ErrorCode = src.ErrorCode
	case FieldStylePrompt:
		dst.StylePrompt = src.StylePrompt
	case FieldPromptUsed:
		dst.PromptUsed = src.PromptUsed
	default:
		return ErrUnknownField
	}
	return nil
}

// appendLogLine concatenates a line onto an existing log with a single
// newline separator, preserving all prior content.
func appendLogLine(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

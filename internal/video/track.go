package video

import (
	"time"

	"github.com/avelarde/musicvideo-api/internal/video/id"
)

// Track represents an uploaded audio track that videos are generated from.
type Track struct {
	// ID is the unique identifier for this track.
	ID string `gorm:"primaryKey" json:"id"`
	// Title is the track title.
	Title string `json:"title"`
	// Artist is the performing artist, possibly empty.
	Artist string `json:"artist"`
	// AudioPath is the audio file, relative to the media root.
	AudioPath string `json:"audio_path"`
	// Lyrics is the song text used when building prompts.
	Lyrics string `json:"lyrics"`
	// Language is an optional ISO language code.
	Language string `json:"language"`
	// BPM is the optional beats-per-minute value, zero when unknown.
	BPM int `json:"bpm"`
	// CreatedAt is when the track was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the track was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTrack creates a new Track with a generated ID.
func NewTrack(title, audioPath string) *Track {
	now := time.Now()
	return &Track{
		ID:        id.Generate("trk"),
		Title:     title,
		AudioPath: audioPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

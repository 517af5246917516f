package video

import (
	"time"

	"github.com/avelarde/musicvideo-api/internal/video/id"
)

// Project groups generated videos for organisational purposes.
// Membership has no effect on generation.
type Project struct {
	// ID is the unique identifier for this project.
	ID string `gorm:"primaryKey" json:"id"`
	// Name is the project name.
	Name string `json:"name"`
	// Description is free text.
	Description string `json:"description"`
	// VideoIDs lists the member videos.
	VideoIDs []string `gorm:"serializer:json" json:"video_ids"`
	// IsActive marks whether the project is visible in listings.
	IsActive bool `json:"is_active"`
	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the project was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a new active Project with a generated ID.
func NewProject(name string) *Project {
	now := time.Now()
	return &Project{
		ID:        id.Generate("prj"),
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

package models

import (
	"time"

	"montage/internal/timeline"
)

// Template is a stored design that can be rendered by id.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Design      timeline.Design `json:"design"`
	CreatedAt   time.Time       `json:"created_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// TemplateSummary is the listing form of a Template, without its design.
type TemplateSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Items       int       `json:"items"`
	CreatedAt   time.Time `json:"created_at"`
}

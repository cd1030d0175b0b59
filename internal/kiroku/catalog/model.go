package catalog

import (
	"time"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

// Entry is one diary row. Optional columns are pointers (numerics) or
// zero-valued strings/slices so that sparse rows round-trip cleanly.
type Entry struct {
	ID        string           `json:"id"`
	Workspace action.Workspace `json:"workspace"`
	Title     string           `json:"title"`

	Medium     string   `json:"medium,omitempty"`
	Type       string   `json:"type,omitempty"`
	Status     string   `json:"status,omitempty"`
	Genre      []string `json:"genre,omitempty"`
	Platform   string   `json:"platform,omitempty"`
	MyRating   *float64 `json:"my_rating,omitempty"`
	StartDate  string   `json:"start_date,omitempty"`
	FinishDate string   `json:"finish_date,omitempty"`

	EpisodesWatched *int `json:"episodes_watched,omitempty"`
	TotalEpisodes   *int `json:"total_episodes,omitempty"`

	Price      *float64 `json:"price,omitempty"`
	Language   []string `json:"language,omitempty"`
	Poster     string   `json:"poster,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Match returns the lightweight projection used by the entity resolver and
// the confirmation surface.
func (e *Entry) Match() action.MatchedEntry {
	return action.MatchedEntry{ID: e.ID, Title: e.Title, Status: e.Status}
}

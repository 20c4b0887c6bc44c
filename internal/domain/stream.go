package domain

import "time"

type SessionType string

const (
	SessionTypeLive SessionType = "live"
)

// StreamEntity is a game as the streaming provider knows it. Its ID is the
// provider's own and unrelated to the catalog ID.
type StreamEntity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

// LiveSession is one active broadcast for an entity.
type LiveSession struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	UserName    string      `json:"user_name"`
	GameID      string      `json:"game_id"`
	GameName    string      `json:"game_name"`
	Type        SessionType `json:"type"`
	Title       string      `json:"title"`
	ViewerCount int         `json:"viewer_count"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	Language    string      `json:"language"`
}

func (s *LiveSession) IsLive() bool {
	if s == nil {
		return false
	}
	return s.Type == SessionTypeLive
}

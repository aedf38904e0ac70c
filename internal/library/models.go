package library

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var ErrAlbumNotFound = errors.New("album not found")

var ErrTrackNotFound = errors.New("track not found")

var ErrArtistInfoNotFound = errors.New("artist info not found")

// CoverEndpointPrefix is the dynamic cover route every scanned album points at until an
// explicit cover is uploaded.
const CoverEndpointPrefix = "/api/cover/album/"

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Album struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Year     *int   `json:"year,omitempty"`
	CoverURL string `json:"coverUrl"`
}

type Track struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Features    string  `json:"features,omitempty"`
	Genre       string  `json:"genre,omitempty"`
	FileURL     string  `json:"fileUrl"`
	Duration    float64 `json:"duration"`
	TrackNumber int     `json:"trackNumber"`
	AlbumID     string  `json:"albumId"`
}

// ArtistInfo is joined to albums and tracks by name only. Renaming an artist leaves the
// old row behind; nothing cascades from music-file events.
type ArtistInfo struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

func CoverEndpoint(albumID string) string {
	return CoverEndpointPrefix + albumID
}

func nullableString(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	return trimmed
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}

	return *value
}

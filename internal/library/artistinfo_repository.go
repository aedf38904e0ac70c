package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ArtistInfoRepository struct {
	db Querier
}

func NewArtistInfoRepository(database Querier) *ArtistInfoRepository {
	return &ArtistInfoRepository{db: database}
}

func (r *ArtistInfoRepository) Get(ctx context.Context, name string) (ArtistInfo, error) {
	var info ArtistInfo
	var imageURL sql.NullString
	var bio sql.NullString
	err := r.db.QueryRowContext(
		ctx,
		"SELECT name, image_url, bio FROM artist_info WHERE name = ?",
		name,
	).Scan(&info.Name, &imageURL, &bio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArtistInfo{}, ErrArtistInfoNotFound
		}
		return ArtistInfo{}, fmt.Errorf("get artist info %q: %w", name, err)
	}

	info.ImageURL = imageURL.String
	info.Bio = bio.String
	return info, nil
}

// Upsert writes the row keyed by name. Empty fields never overwrite stored values, so an
// uploaded image survives a later enrichment that carries only a bio.
func (r *ArtistInfoRepository) Upsert(ctx context.Context, info ArtistInfo) error {
	if strings.TrimSpace(info.Name) == "" {
		return errors.New("artist name is required")
	}

	if _, err := r.db.ExecContext(
		ctx,
		`INSERT INTO artist_info(name, image_url, bio, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			image_url = COALESCE(excluded.image_url, artist_info.image_url),
			bio = COALESCE(excluded.bio, artist_info.bio),
			updated_at = excluded.updated_at`,
		info.Name,
		nullableString(info.ImageURL),
		nullableString(info.Bio),
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("upsert artist info %q: %w", info.Name, err)
	}

	return nil
}

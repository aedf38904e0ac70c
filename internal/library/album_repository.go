package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type AlbumRepository struct {
	db Querier
}

func NewAlbumRepository(database Querier) *AlbumRepository {
	return &AlbumRepository{db: database}
}

// FindOrCreate returns the album keyed by (title, artist), creating it with the given
// year and its derived cover endpoint when absent. It is one statement backed by the
// UNIQUE(title, artist) constraint, so concurrent callers converge on a single row.
func (r *AlbumRepository) FindOrCreate(ctx context.Context, artist string, title string, year *int) (Album, bool, error) {
	candidateID := uuid.NewString()

	var album Album
	var storedYear sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		`INSERT INTO albums(id, title, artist, year, cover_url)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(title, artist) DO UPDATE SET title = excluded.title
		 RETURNING id, title, artist, year, cover_url`,
		candidateID,
		title,
		artist,
		nullableInt(year),
		CoverEndpoint(candidateID),
	).Scan(&album.ID, &album.Title, &album.Artist, &storedYear, &album.CoverURL)
	if err != nil {
		return Album{}, false, fmt.Errorf("upsert album %q by %q: %w", title, artist, err)
	}

	album.Year = intPointer(storedYear)
	return album, album.ID == candidateID, nil
}

func (r *AlbumRepository) GetByID(ctx context.Context, id string) (Album, error) {
	var album Album
	var year sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id, title, artist, year, cover_url FROM albums WHERE id = ?",
		id,
	).Scan(&album.ID, &album.Title, &album.Artist, &year, &album.CoverURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Album{}, ErrAlbumNotFound
		}
		return Album{}, fmt.Errorf("get album %s: %w", id, err)
	}

	album.Year = intPointer(year)
	return album, nil
}

func (r *AlbumRepository) ListByArtist(ctx context.Context, artist string) ([]Album, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT id, title, artist, year, cover_url FROM albums WHERE artist = ? ORDER BY title COLLATE NOCASE",
		artist,
	)
	if err != nil {
		return nil, fmt.Errorf("list albums by %q: %w", artist, err)
	}
	defer rows.Close()

	return scanAlbums(rows)
}

func (r *AlbumRepository) SetCoverURL(ctx context.Context, id string, coverURL string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE albums SET cover_url = ? WHERE id = ?", coverURL, id)
	if err != nil {
		return fmt.Errorf("update cover for album %s: %w", id, err)
	}

	return requireAffected(result, ErrAlbumNotFound)
}

// Delete removes the album; its tracks go with it through ON DELETE CASCADE.
func (r *AlbumRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM albums WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete album %s: %w", id, err)
	}

	return requireAffected(result, ErrAlbumNotFound)
}

// DeleteIfEmpty removes the album only when no track references it.
func (r *AlbumRepository) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(
		ctx,
		"DELETE FROM albums WHERE id = ? AND NOT EXISTS (SELECT 1 FROM tracks WHERE album_id = albums.id)",
		id,
	)
	if err != nil {
		return false, fmt.Errorf("delete empty album %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read deleted album count: %w", err)
	}

	return affected > 0, nil
}

func (r *AlbumRepository) DeleteEmpty(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(
		ctx,
		"DELETE FROM albums WHERE NOT EXISTS (SELECT 1 FROM tracks WHERE album_id = albums.id)",
	)
	if err != nil {
		return 0, fmt.Errorf("delete empty albums: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read deleted album count: %w", err)
	}

	return affected, nil
}

func scanAlbums(rows *sql.Rows) ([]Album, error) {
	albums := make([]Album, 0)
	for rows.Next() {
		var album Album
		var year sql.NullInt64
		if err := rows.Scan(&album.ID, &album.Title, &album.Artist, &year, &album.CoverURL); err != nil {
			return nil, fmt.Errorf("scan album row: %w", err)
		}
		album.Year = intPointer(year)
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate album rows: %w", err)
	}

	return albums, nil
}

func intPointer(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}

	converted := int(value.Int64)
	return &converted
}

func requireAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected row count: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}

	return nil
}

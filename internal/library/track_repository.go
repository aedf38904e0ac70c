package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const trackColumns = "id, title, artist, features, genre, file_url, duration, track_number, album_id"

type TrackRepository struct {
	db Querier
}

func NewTrackRepository(database Querier) *TrackRepository {
	return &TrackRepository{db: database}
}

// Create inserts the track unless another row already owns its file URL. The returned
// bool reports whether a row was written; track.ID is assigned when empty.
func (r *TrackRepository) Create(ctx context.Context, track *Track) (bool, error) {
	if track.ID == "" {
		track.ID = uuid.NewString()
	}

	result, err := r.db.ExecContext(
		ctx,
		`INSERT INTO tracks(id, title, artist, features, genre, file_url, duration, track_number, album_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_url) DO NOTHING`,
		track.ID,
		track.Title,
		track.Artist,
		nullableString(track.Features),
		nullableString(track.Genre),
		track.FileURL,
		track.Duration,
		track.TrackNumber,
		track.AlbumID,
	)
	if err != nil {
		return false, fmt.Errorf("insert track %s: %w", track.FileURL, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read inserted track count: %w", err)
	}

	return affected > 0, nil
}

func (r *TrackRepository) GetByID(ctx context.Context, id string) (Track, error) {
	return r.getOne(ctx, "SELECT "+trackColumns+" FROM tracks WHERE id = ?", id)
}

func (r *TrackRepository) GetByFileURL(ctx context.Context, fileURL string) (Track, error) {
	return r.getOne(ctx, "SELECT "+trackColumns+" FROM tracks WHERE file_url = ?", fileURL)
}

// FirstInAlbum returns the album's lowest-numbered track.
func (r *TrackRepository) FirstInAlbum(ctx context.Context, albumID string) (Track, error) {
	return r.getOne(
		ctx,
		"SELECT "+trackColumns+" FROM tracks WHERE album_id = ? ORDER BY track_number, title COLLATE NOCASE LIMIT 1",
		albumID,
	)
}

func (r *TrackRepository) ListByAlbum(ctx context.Context, albumID string) ([]Track, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT "+trackColumns+" FROM tracks WHERE album_id = ? ORDER BY track_number, title COLLATE NOCASE",
		albumID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tracks for album %s: %w", albumID, err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

// ListForArtist returns tracks on the artist's albums and tracks crediting the artist
// anywhere in their artist tag, such as features on other artists' albums.
func (r *TrackRepository) ListForArtist(ctx context.Context, artist string) ([]Track, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE album_id IN (SELECT id FROM albums WHERE artist = ?) OR instr(artist, ?) > 0
		 ORDER BY album_id, track_number, title COLLATE NOCASE`,
		artist,
		artist,
	)
	if err != nil {
		return nil, fmt.Errorf("list tracks for artist %q: %w", artist, err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

func (r *TrackRepository) List(ctx context.Context) ([]Track, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+trackColumns+" FROM tracks ORDER BY file_url")
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

func (r *TrackRepository) ListFileURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT file_url FROM tracks")
	if err != nil {
		return nil, fmt.Errorf("list track file urls: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var fileURL string
		if err := rows.Scan(&fileURL); err != nil {
			return nil, fmt.Errorf("scan track file url: %w", err)
		}
		urls = append(urls, fileURL)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track file urls: %w", err)
	}

	return urls, nil
}

type TrackEdit struct {
	Title       string
	Artist      string
	Features    string
	Genre       string
	TrackNumber int
}

func (r *TrackRepository) Update(ctx context.Context, id string, edit TrackEdit) error {
	result, err := r.db.ExecContext(
		ctx,
		"UPDATE tracks SET title = ?, artist = ?, features = ?, genre = ?, track_number = ? WHERE id = ?",
		edit.Title,
		edit.Artist,
		nullableString(edit.Features),
		nullableString(edit.Genre),
		edit.TrackNumber,
		id,
	)
	if err != nil {
		return fmt.Errorf("update track %s: %w", id, err)
	}

	return requireAffected(result, ErrTrackNotFound)
}

func (r *TrackRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete track %s: %w", id, err)
	}

	return requireAffected(result, ErrTrackNotFound)
}

func (r *TrackRepository) getOne(ctx context.Context, query string, arg any) (Track, error) {
	track, err := scanTrack(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Track{}, ErrTrackNotFound
		}
		return Track{}, fmt.Errorf("get track %v: %w", arg, err)
	}

	return track, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (Track, error) {
	var track Track
	var features sql.NullString
	var genre sql.NullString
	err := row.Scan(
		&track.ID,
		&track.Title,
		&track.Artist,
		&features,
		&genre,
		&track.FileURL,
		&track.Duration,
		&track.TrackNumber,
		&track.AlbumID,
	)
	if err != nil {
		return Track{}, err
	}

	track.Features = features.String
	track.Genre = genre.String
	return track, nil
}

func scanTracks(rows *sql.Rows) ([]Track, error) {
	tracks := make([]Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track row: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track rows: %w", err)
	}

	return tracks, nil
}

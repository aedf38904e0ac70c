package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const defaultBrowseLimit = 24

const maxBrowseLimit = 200

type PageInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type AlbumSummary struct {
	Album
	TrackCount int `json:"trackCount"`
}

type AlbumsPage struct {
	Items []AlbumSummary `json:"items"`
	Page  PageInfo       `json:"page"`
}

type AlbumDetail struct {
	Album
	Tracks []Track `json:"tracks"`
}

type ArtistSummary struct {
	Name       string `json:"name"`
	AlbumCount int    `json:"albumCount"`
	TrackCount int    `json:"trackCount"`
}

type BrowseRepository struct {
	db *sql.DB
}

func NewBrowseRepository(database *sql.DB) *BrowseRepository {
	return &BrowseRepository{db: database}
}

func (r *BrowseRepository) ListAlbums(ctx context.Context, search string, artist string, limit int, offset int) (AlbumsPage, error) {
	limit, offset = normalizePagination(limit, offset, defaultBrowseLimit)

	whereClauses := []string{"1 = 1"}
	args := make([]any, 0, 3)

	if pattern := makeSearchPattern(search); pattern != "" {
		whereClauses = append(whereClauses, "(LOWER(a.title) LIKE ? OR LOWER(a.artist) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	if artistFilter := strings.TrimSpace(artist); artistFilter != "" {
		whereClauses = append(whereClauses, "a.artist = ?")
		args = append(args, artistFilter)
	}

	whereSQL := strings.Join(whereClauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(
		ctx,
		fmt.Sprintf("SELECT COUNT(1) FROM albums a WHERE %s", whereSQL),
		args...,
	).Scan(&total); err != nil {
		return AlbumsPage{}, fmt.Errorf("count albums: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT
			a.id,
			a.title,
			a.artist,
			a.year,
			a.cover_url,
			(SELECT COUNT(1) FROM tracks t WHERE t.album_id = a.id) AS track_count
		FROM albums a
		WHERE %s
		ORDER BY a.artist COLLATE NOCASE, a.title COLLATE NOCASE
		LIMIT ?
		OFFSET ?
	`, whereSQL)

	listArgs := append(cloneArgs(args), limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return AlbumsPage{}, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	albums := make([]AlbumSummary, 0)
	for rows.Next() {
		var album AlbumSummary
		var year sql.NullInt64
		if scanErr := rows.Scan(&album.ID, &album.Title, &album.Artist, &year, &album.CoverURL, &album.TrackCount); scanErr != nil {
			return AlbumsPage{}, fmt.Errorf("scan album row: %w", scanErr)
		}
		album.Year = intPointer(year)
		albums = append(albums, album)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return AlbumsPage{}, fmt.Errorf("iterate album rows: %w", rowsErr)
	}

	return AlbumsPage{
		Items: albums,
		Page: PageInfo{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	}, nil
}

func (r *BrowseRepository) GetAlbumDetail(ctx context.Context, id string) (AlbumDetail, error) {
	album, err := NewAlbumRepository(r.db).GetByID(ctx, id)
	if err != nil {
		return AlbumDetail{}, err
	}

	tracks, err := NewTrackRepository(r.db).ListByAlbum(ctx, id)
	if err != nil {
		return AlbumDetail{}, err
	}

	return AlbumDetail{Album: album, Tracks: tracks}, nil
}

func (r *BrowseRepository) ListArtists(ctx context.Context) ([]ArtistSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			a.artist,
			COUNT(DISTINCT a.id) AS album_count,
			COUNT(t.id) AS track_count
		FROM albums a
		LEFT JOIN tracks t ON t.album_id = a.id
		GROUP BY a.artist
		ORDER BY a.artist COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()

	artists := make([]ArtistSummary, 0)
	for rows.Next() {
		var artist ArtistSummary
		if err := rows.Scan(&artist.Name, &artist.AlbumCount, &artist.TrackCount); err != nil {
			return nil, fmt.Errorf("scan artist row: %w", err)
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artist rows: %w", err)
	}

	return artists, nil
}

func normalizePagination(limit int, offset int, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxBrowseLimit {
		limit = maxBrowseLimit
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

func makeSearchPattern(search string) string {
	trimmed := strings.TrimSpace(search)
	if trimmed == "" {
		return ""
	}

	return "%" + strings.ToLower(trimmed) + "%"
}

func cloneArgs(args []any) []any {
	copyArgs := make([]any, len(args))
	copy(copyArgs, args)
	return copyArgs
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"musicbox/internal/library"
	"musicbox/internal/metadata"
)

var ErrNoAlbumsForArtist = errors.New("no albums found for artist")

type TrackChanges struct {
	Title       *string `json:"title"`
	Artist      *string `json:"artist"`
	Genre       *string `json:"genre"`
	TrackNumber *int    `json:"trackNumber"`
}

// UpdateTrack applies an edit. Features are derived again from the artist string so the
// stored pair always agrees with the parsing rules used at ingestion.
func (s *Service) UpdateTrack(ctx context.Context, id string, changes TrackChanges) (library.Track, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	tracks := library.NewTrackRepository(s.db)
	track, err := tracks.GetByID(ctx, id)
	if err != nil {
		return library.Track{}, err
	}

	if changes.Title != nil && strings.TrimSpace(*changes.Title) != "" {
		track.Title = strings.TrimSpace(*changes.Title)
	}
	if changes.Artist != nil && strings.TrimSpace(*changes.Artist) != "" {
		track.Artist = strings.TrimSpace(*changes.Artist)
		_, track.Features = metadata.ParseArtist(track.Artist)
	}
	if changes.Genre != nil {
		track.Genre = strings.TrimSpace(*changes.Genre)
	}
	if changes.TrackNumber != nil && *changes.TrackNumber >= 0 {
		track.TrackNumber = *changes.TrackNumber
	}

	err = tracks.Update(ctx, id, library.TrackEdit{
		Title:       track.Title,
		Artist:      track.Artist,
		Features:    track.Features,
		Genre:       track.Genre,
		TrackNumber: track.TrackNumber,
	})
	if err != nil {
		return library.Track{}, err
	}

	return track, nil
}

// DeleteTrack unlinks the backing file, removes the track and drops its album if emptied.
func (s *Service) DeleteTrack(ctx context.Context, id string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	track, err := library.NewTrackRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.unlink(track.FileURL)

	albumRemoved, err := s.deleteTrackRow(ctx, track)
	if err != nil {
		return err
	}

	s.logger.Info("deleted track", "track", id, "albumRemoved", albumRemoved)
	return nil
}

// DeleteAlbum removes the album and, through the cascade, its tracks. With deleteFiles the
// backing files are unlinked first; unlink failures are logged and do not stop the delete.
func (s *Service) DeleteAlbum(ctx context.Context, id string, deleteFiles bool) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	return s.deleteAlbum(ctx, id, deleteFiles)
}

// DeleteArtist removes every album grouped under artist, together with the files.
func (s *Service) DeleteArtist(ctx context.Context, artist string) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	albums, err := library.NewAlbumRepository(s.db).ListByArtist(ctx, artist)
	if err != nil {
		return 0, err
	}
	if len(albums) == 0 {
		return 0, ErrNoAlbumsForArtist
	}

	deleted := 0
	for _, album := range albums {
		if err := s.deleteAlbum(ctx, album.ID, true); err != nil {
			return deleted, fmt.Errorf("delete album %q: %w", album.Title, err)
		}
		deleted++
	}

	s.logger.Info("deleted artist", "artist", artist, "albums", deleted)
	return deleted, nil
}

func (s *Service) deleteAlbum(ctx context.Context, id string, deleteFiles bool) error {
	if deleteFiles {
		tracks, err := library.NewTrackRepository(s.db).ListByAlbum(ctx, id)
		if err != nil {
			return err
		}
		for _, track := range tracks {
			s.unlink(track.FileURL)
		}
	}

	if err := library.NewAlbumRepository(s.db).Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("deleted album", "album", id, "filesDeleted", deleteFiles)
	return nil
}

func (s *Service) unlink(fileURL string) {
	path, err := s.resolver.Resolve(fileURL)
	if err != nil {
		s.logger.Warn("cannot resolve file for deletion", "fileUrl", fileURL, "error", err)
		return
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to delete file", "file", path, "error", err)
	}
}

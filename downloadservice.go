package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"musicbox/internal/bundle"
	"musicbox/internal/fileref"
	"musicbox/internal/library"

	"github.com/gin-gonic/gin"
)

var archiveNameUnsafe = regexp.MustCompile(`[^a-z0-9]`)

// DownloadService hands out single tracks as attachments and albums or artists as zip
// archives laid out <artist>/<album>/<file>.
type DownloadService struct {
	albums   *library.AlbumRepository
	tracks   *library.TrackRepository
	resolver fileref.Resolver
	logger   *slog.Logger
}

func NewDownloadService(database library.Querier, resolver fileref.Resolver, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		albums:   library.NewAlbumRepository(database),
		tracks:   library.NewTrackRepository(database),
		resolver: resolver,
		logger:   logger.With("component", "http"),
	}
}

func (s *DownloadService) registerRoutes(r routes) {
	r.Protected.GET("/download/track/:id", s.DownloadTrack)
	r.Protected.GET("/download/album/:id", s.DownloadAlbum)
	r.Protected.GET("/download/artist/:name", s.DownloadArtist)
}

func (s *DownloadService) DownloadTrack(c *gin.Context) {
	track, err := s.tracks.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, s.logger, "Download failed", err)
		return
	}

	path, err := s.resolver.Resolve(track.FileURL)
	if err != nil {
		writeError(c, s.logger, "Download failed", err)
		return
	}

	if info, statErr := os.Stat(path); statErr != nil || !info.Mode().IsRegular() {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}

func (s *DownloadService) DownloadAlbum(c *gin.Context) {
	ctx := c.Request.Context()

	album, err := s.albums.GetByID(ctx, c.Param("id"))
	if err != nil {
		writeError(c, s.logger, "Download failed", err)
		return
	}

	tracks, err := s.tracks.ListByAlbum(ctx, album.ID)
	if err != nil {
		writeError(c, s.logger, "Download failed", err)
		return
	}
	if len(tracks) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No tracks found for this album"})
		return
	}

	entries := s.entries(tracks, func(library.Track) (string, string) { return album.Artist, album.Title })
	s.streamArchive(c, album.Title, entries)
}

// DownloadArtist bundles the artist's albums plus tracks they feature on elsewhere, all
// filed under the requested artist's name.
func (s *DownloadService) DownloadArtist(c *gin.Context) {
	ctx := c.Request.Context()
	name := strings.TrimSpace(c.Param("name"))

	tracks, err := s.tracks.ListForArtist(ctx, name)
	if err != nil {
		writeError(c, s.logger, "Download failed", err)
		return
	}
	if len(tracks) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No tracks found for artist: %s", name)})
		return
	}

	titles := make(map[string]string)
	for _, track := range tracks {
		if _, ok := titles[track.AlbumID]; ok {
			continue
		}
		album, err := s.albums.GetByID(ctx, track.AlbumID)
		if err != nil {
			writeError(c, s.logger, "Download failed", err)
			return
		}
		titles[track.AlbumID] = album.Title
	}

	entries := s.entries(tracks, func(track library.Track) (string, string) { return name, titles[track.AlbumID] })
	s.streamArchive(c, name, entries)
}

func (s *DownloadService) entries(tracks []library.Track, folder func(library.Track) (string, string)) []bundle.Entry {
	entries := make([]bundle.Entry, 0, len(tracks))
	for _, track := range tracks {
		path, err := s.resolver.Resolve(track.FileURL)
		if err != nil {
			s.logger.Warn("skipping track with unresolvable file reference", "track", track.ID, "fileUrl", track.FileURL, "error", err)
			continue
		}

		artist, album := folder(track)
		entries = append(entries, bundle.Entry{Name: bundle.EntryName(artist, album, filepath.Base(path)), Path: path})
	}

	return entries
}

// streamArchive commits the response headers before the first file is read, so a failure
// midway can only be logged.
func (s *DownloadService) streamArchive(c *gin.Context, title string, entries []bundle.Entry) {
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archiveFileName(title)))
	c.Status(http.StatusOK)

	written, err := bundle.WriteZip(c.Writer, entries, s.logger)
	if err != nil {
		s.logger.Error("archive download aborted", "title", title, "written", written, "error", err)
		return
	}

	s.logger.Debug("archive download complete", "title", title, "files", written)
}

func archiveFileName(title string) string {
	return archiveNameUnsafe.ReplaceAllString(strings.ToLower(title), "_") + ".zip"
}

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"musicbox/internal/library"
	"musicbox/internal/scanner"

	"github.com/gin-gonic/gin"
)

type LibraryService struct {
	browse  *library.BrowseRepository
	scanner *scanner.Service
	logger  *slog.Logger
}

func NewLibraryService(browse *library.BrowseRepository, scanService *scanner.Service, logger *slog.Logger) *LibraryService {
	return &LibraryService{browse: browse, scanner: scanService, logger: logger.With("component", "http")}
}

func (s *LibraryService) registerRoutes(r routes) {
	r.API.GET("/albums", s.ListAlbums)
	r.API.GET("/albums/:id", s.GetAlbum)
	r.API.GET("/artists", s.ListArtists)

	r.Protected.DELETE("/album/:id", s.DeleteAlbum)
	r.Protected.DELETE("/artist/:name", s.DeleteArtist)
	r.Protected.PATCH("/track/:id", s.UpdateTrack)
	r.Protected.DELETE("/track/:id", s.DeleteTrack)
}

func (s *LibraryService) ListAlbums(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := s.browse.ListAlbums(c.Request.Context(), c.Query("search"), c.Query("artist"), limit, offset)
	if err != nil {
		writeError(c, s.logger, "Failed to list albums", err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *LibraryService) GetAlbum(c *gin.Context) {
	detail, err := s.browse.GetAlbumDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, s.logger, "Failed to load album", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (s *LibraryService) ListArtists(c *gin.Context) {
	artists, err := s.browse.ListArtists(c.Request.Context())
	if err != nil {
		writeError(c, s.logger, "Failed to list artists", err)
		return
	}

	c.JSON(http.StatusOK, artists)
}

func (s *LibraryService) DeleteAlbum(c *gin.Context) {
	deleteFiles := c.Query("deleteFiles") == "true"
	if err := s.scanner.DeleteAlbum(c.Request.Context(), c.Param("id"), deleteFiles); err != nil {
		writeError(c, s.logger, "Delete failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Album deleted"})
}

func (s *LibraryService) DeleteArtist(c *gin.Context) {
	name := c.Param("name")
	deleted, err := s.scanner.DeleteArtist(c.Request.Context(), name)
	if err != nil {
		writeError(c, s.logger, "Delete failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Deleted %d albums for %s", deleted, name)})
}

func (s *LibraryService) UpdateTrack(c *gin.Context) {
	var changes scanner.TrackChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	track, err := s.scanner.UpdateTrack(c.Request.Context(), c.Param("id"), changes)
	if err != nil {
		writeError(c, s.logger, "Update failed", err)
		return
	}

	c.JSON(http.StatusOK, track)
}

func (s *LibraryService) DeleteTrack(c *gin.Context) {
	if err := s.scanner.DeleteTrack(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, s.logger, "Delete failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Track deleted"})
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"musicbox/internal/enrich"
	"musicbox/internal/library"

	"github.com/gin-gonic/gin"
)

type ArtistProfile struct {
	Name     string          `json:"name"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Bio      string          `json:"bio,omitempty"`
	Albums   []library.Album `json:"albums"`
}

type ArtistService struct {
	albums   *library.AlbumRepository
	info     *library.ArtistInfoRepository
	enricher enrich.Enricher
	logger   *slog.Logger
}

// NewArtistService takes a nil enricher when no external catalogue is configured.
func NewArtistService(
	albums *library.AlbumRepository,
	info *library.ArtistInfoRepository,
	enricher enrich.Enricher,
	logger *slog.Logger,
) *ArtistService {
	return &ArtistService{albums: albums, info: info, enricher: enricher, logger: logger.With("component", "http")}
}

func (s *ArtistService) registerRoutes(r routes) {
	r.API.GET("/artist/:name", s.GetArtist)
}

func (s *ArtistService) GetArtist(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	albums, err := s.albums.ListByArtist(ctx, name)
	if err != nil {
		writeError(c, s.logger, "Failed to load artist", err)
		return
	}

	info, err := s.lookupInfo(ctx, name)
	if err != nil {
		writeError(c, s.logger, "Failed to load artist", err)
		return
	}

	if len(albums) == 0 && info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Artist not found"})
		return
	}

	profile := ArtistProfile{Name: name, Albums: albums}
	if info != nil {
		profile.ImageURL = info.ImageURL
		profile.Bio = info.Bio
	}

	c.JSON(http.StatusOK, profile)
}

// lookupInfo returns stored artist info, fetching and storing it on first request when
// enrichment is available. Enrichment failures leave the artist without info.
func (s *ArtistService) lookupInfo(ctx context.Context, name string) (*library.ArtistInfo, error) {
	info, err := s.info.Get(ctx, name)
	if err == nil {
		return &info, nil
	}
	if !errors.Is(err, library.ErrArtistInfoNotFound) {
		return nil, err
	}
	if s.enricher == nil {
		return nil, nil
	}

	profile, err := s.enricher.Lookup(ctx, name)
	if err != nil {
		s.logger.Warn("artist enrichment failed", "artist", name, "error", err)
		return nil, nil
	}

	info = library.ArtistInfo{Name: name, ImageURL: profile.ImageURL, Bio: profile.Bio}
	if err := s.info.Upsert(ctx, info); err != nil {
		return nil, err
	}

	return &info, nil
}

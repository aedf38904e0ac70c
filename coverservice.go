package main

import (
	"log/slog"
	"net/http"

	"musicbox/internal/coverart"

	"github.com/gin-gonic/gin"
)

const coverCacheControl = "public, max-age=31536000, immutable"

type CoverService struct {
	source   *coverart.Source
	renderer *coverart.Renderer
	logger   *slog.Logger
}

func NewCoverService(source *coverart.Source, renderer *coverart.Renderer, logger *slog.Logger) *CoverService {
	return &CoverService{source: source, renderer: renderer, logger: logger.With("component", "http")}
}

func (s *CoverService) registerRoutes(r routes) {
	r.API.GET("/cover/album/:id", s.GetAlbumCover)
}

// GetAlbumCover serves the picture embedded in the album's first track. A thumbnail
// variant that fails to render falls back to the original picture.
func (s *CoverService) GetAlbumCover(c *gin.Context) {
	picture, err := s.source.AlbumPicture(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, s.logger, "Failed to load cover", err)
		return
	}

	c.Header("Cache-Control", coverCacheControl)

	variant := coverart.NormalizeVariant(c.Query("variant"))
	if variant != coverart.VariantOriginal {
		path, renderErr := s.renderer.Thumbnail(picture, variant)
		if renderErr == nil {
			c.Header("Content-Type", "image/avif")
			c.File(path)
			return
		}
		s.logger.Warn("cover thumbnail failed, serving original", "album", c.Param("id"), "variant", variant, "error", renderErr)
	}

	c.Data(http.StatusOK, picture.MIMEType, picture.Data)
}

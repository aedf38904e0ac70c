package main

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"musicbox/internal/auth"
	"musicbox/internal/coverart"
	"musicbox/internal/enrich"
	"musicbox/internal/fileref"
	"musicbox/internal/library"
	"musicbox/internal/metadata"
	"musicbox/internal/scanner"

	"github.com/gin-gonic/gin"
)

// routes groups the three mount points services attach to. Protected routes sit behind
// the auth gate.
type routes struct {
	Root      *gin.RouterGroup
	API       *gin.RouterGroup
	Protected *gin.RouterGroup
}

type routeRegistrar interface {
	registerRoutes(r routes)
}

func NewRouter(gate *auth.Gate, logger *slog.Logger, services ...routeRegistrar) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())

	r := routes{
		Root:      &router.RouterGroup,
		API:       router.Group("/api"),
		Protected: router.Group("/api", gate.Middleware()),
	}
	for _, service := range services {
		service.registerRoutes(r)
	}

	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "http")

	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelInfo
		}

		logger.Log(
			c.Request.Context(),
			level,
			"request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed", time.Since(started).Round(time.Microsecond),
		)
	}
}

// writeError maps domain sentinels to status codes. Unknown errors are logged and
// reported as a generic failure.
func writeError(c *gin.Context, logger *slog.Logger, fallback string, err error) {
	switch {
	case errors.Is(err, library.ErrAlbumNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Album not found"})
	case errors.Is(err, library.ErrTrackNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Track not found"})
	case errors.Is(err, scanner.ErrNoAlbumsForArtist), errors.Is(err, enrich.ErrArtistNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Artist not found"})
	case errors.Is(err, coverart.ErrNoPicture):
		c.JSON(http.StatusNotFound, gin.H{"error": "No cover found"})
	case errors.Is(err, fileref.ErrInvalidReference), errors.Is(err, fileref.ErrOutsideRoot):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path"})
	case errors.Is(err, scanner.ErrUnsupportedUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
	case errors.Is(err, metadata.ErrUnreadable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable audio file"})
	case errors.Is(err, coverart.ErrNotImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is not an image"})
	case errors.Is(err, coverart.ErrUploadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		logger.Error(fallback, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

package main

import (
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"musicbox/internal/fileref"

	"github.com/gin-gonic/gin"
)

var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
}

// MusicService streams backing files by their stored reference. Range requests are
// handled by http.ServeFile.
type MusicService struct {
	resolver fileref.Resolver
	logger   *slog.Logger
}

func NewMusicService(resolver fileref.Resolver, logger *slog.Logger) *MusicService {
	return &MusicService{resolver: resolver, logger: logger.With("component", "http")}
}

func (s *MusicService) registerRoutes(r routes) {
	r.Root.GET(fileref.Prefix+"/*path", s.StreamFile)
}

func (s *MusicService) StreamFile(c *gin.Context) {
	path, err := s.resolver.Resolve(fileref.Prefix + c.Param("path"))
	if err != nil {
		writeError(c, s.logger, "Failed to resolve file", err)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	c.Header("Content-Type", contentTypeFor(path))
	c.File(path)
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if contentType, ok := audioContentTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	return "application/octet-stream"
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"musicbox/internal/coverart"
	"musicbox/internal/library"
	"musicbox/internal/scanner"

	"github.com/gin-gonic/gin"
)

const (
	maxAudioUploadBytes = 1 << 30
	maxImageUploadBytes = 20 << 20
)

type trackImporter interface {
	Supports(path string) bool
	Import(ctx context.Context, upload scanner.Upload) (library.Track, error)
}

// UploadService accepts audio uploads into the music root and artist photos into the
// uploads store, and serves stored uploads back.
type UploadService struct {
	importer trackImporter
	images   *coverart.Store
	artists  *library.ArtistInfoRepository
	logger   *slog.Logger
}

func NewUploadService(importer trackImporter, images *coverart.Store, artists *library.ArtistInfoRepository, logger *slog.Logger) *UploadService {
	return &UploadService{importer: importer, images: images, artists: artists, logger: logger.With("component", "http")}
}

func (s *UploadService) registerRoutes(r routes) {
	r.Protected.POST("/upload", s.UploadTracks)
	r.Protected.POST("/artist/image", s.UploadArtistImage)
	r.Root.GET(coverart.UploadsPrefix+":name", s.ServeUpload)
}

// UploadTracks imports every "files" part. All names are checked before anything is
// written, so an unsupported file rejects the whole request.
func (s *UploadService) UploadTracks(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}
	files := form.File["files"]

	for _, header := range files {
		if !s.importer.Supports(header.Filename) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported file type: %s", header.Filename)})
			return
		}
		if header.Size > maxAudioUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File too large: %s", header.Filename)})
			return
		}
	}

	ctx := context.WithoutCancel(c.Request.Context())
	tracks := make([]library.Track, 0, len(files))
	for _, header := range files {
		data, err := readPart(header, maxAudioUploadBytes)
		if err != nil {
			writeError(c, s.logger, "Upload failed", err)
			return
		}

		track, err := s.importer.Import(ctx, scanner.Upload{Name: header.Filename, Data: data})
		if err != nil {
			writeError(c, s.logger, "Upload failed", err)
			return
		}
		tracks = append(tracks, track)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Upload successful", "tracks": tracks})
}

func (s *UploadService) UploadArtistImage(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("artistName"))
	header, err := c.FormFile("file")
	if err != nil || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file or artist name"})
		return
	}
	if header.Size > maxImageUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	data, err := readPart(header, maxImageUploadBytes)
	if err != nil {
		writeError(c, s.logger, "Upload failed", err)
		return
	}

	imageURL, err := s.images.Save(data)
	if err != nil {
		writeError(c, s.logger, "Upload failed", err)
		return
	}

	if err := s.artists.Upsert(c.Request.Context(), library.ArtistInfo{Name: name, ImageURL: imageURL}); err != nil {
		writeError(c, s.logger, "Upload failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"imageUrl": imageURL})
}

func (s *UploadService) ServeUpload(c *gin.Context) {
	path, err := s.images.Path(c.Param("name"))
	if err != nil {
		writeError(c, s.logger, "Failed to load upload", err)
		return
	}

	c.Header("Cache-Control", coverCacheControl)
	c.File(path)
}

func readPart(header *multipart.FileHeader, limit int64) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}

	return data, nil
}

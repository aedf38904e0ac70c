package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"musicbox/internal/library"
	"musicbox/internal/scanner"

	"github.com/gin-gonic/gin"
)

const defaultBootstrapAlbumsLimit = 48

type StartupSnapshot struct {
	ScanStatus  scanner.Status     `json:"scanStatus"`
	AlbumsPage  library.AlbumsPage `json:"albumsPage"`
	Watching    bool               `json:"watching"`
	AuthEnabled bool               `json:"authEnabled"`
}

type watchState interface {
	Watching() bool
}

// BootstrapService answers the first request a client makes: scan state plus the first
// page of albums.
type BootstrapService struct {
	browseRepo  *library.BrowseRepository
	scanner     *scanner.Service
	watcher     watchState
	authEnabled bool
	logger      *slog.Logger
}

func NewBootstrapService(
	browseRepo *library.BrowseRepository,
	scanService *scanner.Service,
	watcher watchState,
	authEnabled bool,
	logger *slog.Logger,
) *BootstrapService {
	return &BootstrapService{
		browseRepo:  browseRepo,
		scanner:     scanService,
		watcher:     watcher,
		authEnabled: authEnabled,
		logger:      logger.With("component", "http"),
	}
}

func (s *BootstrapService) registerRoutes(r routes) {
	r.API.GET("/bootstrap", s.GetInitialState)
}

func (s *BootstrapService) GetInitialState(c *gin.Context) {
	albumsLimit, _ := strconv.Atoi(c.Query("albumsLimit"))
	if albumsLimit <= 0 {
		albumsLimit = defaultBootstrapAlbumsLimit
	}

	albumsPage, err := s.browseRepo.ListAlbums(c.Request.Context(), "", "", albumsLimit, 0)
	if err != nil {
		writeError(c, s.logger, "Failed to load library", err)
		return
	}

	c.JSON(http.StatusOK, StartupSnapshot{
		ScanStatus:  s.scanner.Status(),
		AlbumsPage:  albumsPage,
		Watching:    s.watcher != nil && s.watcher.Watching(),
		AuthEnabled: s.authEnabled,
	})
}

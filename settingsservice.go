package main

import (
	"net/http"

	"musicbox/internal/config"

	"github.com/gin-gonic/gin"
)

type SettingsView struct {
	MusicDir          string   `json:"musicDir"`
	ScanExtensions    []string `json:"scanExtensions"`
	WatchEnabled      bool     `json:"watchEnabled"`
	WatchQuietPeriod  string   `json:"watchQuietPeriod"`
	SyncSchedule      string   `json:"syncSchedule,omitempty"`
	EnrichmentEnabled bool     `json:"enrichmentEnabled"`
}

// SettingsService exposes the effective configuration without secrets.
type SettingsService struct {
	view SettingsView
}

func NewSettingsService(cfg config.Config) *SettingsService {
	return &SettingsService{view: SettingsView{
		MusicDir:          cfg.MusicDir,
		ScanExtensions:    cfg.ScanExtensions,
		WatchEnabled:      cfg.WatchEnabled,
		WatchQuietPeriod:  cfg.WatchQuietPeriod.String(),
		SyncSchedule:      cfg.SyncSchedule,
		EnrichmentEnabled: cfg.GeniusAccessToken != "",
	}}
}

func (s *SettingsService) registerRoutes(r routes) {
	r.Protected.GET("/settings", s.GetSettings)
}

func (s *SettingsService) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.view)
}

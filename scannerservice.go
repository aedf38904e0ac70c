package main

import (
	"context"
	"log/slog"
	"net/http"

	"musicbox/internal/scanner"

	"github.com/gin-gonic/gin"
)

type ScannerService struct {
	scanner *scanner.Service
	logger  *slog.Logger
}

func NewScannerService(scanService *scanner.Service, logger *slog.Logger) *ScannerService {
	return &ScannerService{scanner: scanService, logger: logger.With("component", "http")}
}

func (s *ScannerService) registerRoutes(r routes) {
	r.Protected.POST("/sync", s.TriggerSync)
	r.API.GET("/sync/status", s.GetStatus)
}

// TriggerSync runs a full sync and reports its summary. The run is detached from the
// request so a disconnecting client does not cut it short.
func (s *ScannerService) TriggerSync(c *gin.Context) {
	result, err := s.scanner.Sync(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		s.logger.Error("sync failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sync failed"})
		return
	}

	body := gin.H{
		"message":    "Sync complete",
		"added":      result.Added,
		"pruned":     result.Pruned,
		"totalFound": result.TotalFound,
	}
	if len(result.Errors) > 0 {
		body["errors"] = result.Errors
	}

	c.JSON(http.StatusOK, body)
}

func (s *ScannerService) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.scanner.Status())
}

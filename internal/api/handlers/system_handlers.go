package handlers

import (
	"net/http"

	"faceid-kiosk/internal/camera"
	"faceid-kiosk/internal/kiosk"
	"faceid-kiosk/internal/server/sse"
	"faceid-kiosk/internal/utils"

	"github.com/gin-gonic/gin"
)

// SystemHandler liefert System- und Kiosk-Statistiken
type SystemHandler struct {
	camera *camera.Manager
	kiosk  *kiosk.Kiosk
	hub    *sse.Hub
}

// NewSystemHandler erstellt einen neuen System-Handler
func NewSystemHandler(cam *camera.Manager, k *kiosk.Kiosk, hub *sse.Hub) *SystemHandler {
	return &SystemHandler{camera: cam, kiosk: k, hub: hub}
}

// RegisterRoutes registriert die System-Routen
func (h *SystemHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/system/stats", h.GetStats)
	router.GET("/healthz", h.Health)
}

// GetStats liefert aktuelle Statistiken
func (h *SystemHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetSystemStats(h))
}

// Health meldet, dass der Server läuft
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CameraInfo implementiert utils.KioskSource
func (h *SystemHandler) CameraInfo() camera.Info { return h.camera.Info() }

// CaptureCount implementiert utils.KioskSource
func (h *SystemHandler) CaptureCount() int { return len(h.kiosk.State().Captures) }

// SSEClients implementiert utils.KioskSource
func (h *SystemHandler) SSEClients() int { return h.hub.ClientCount() }

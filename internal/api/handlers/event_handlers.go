package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"faceid-kiosk/config"
	"faceid-kiosk/internal/camera"
	"faceid-kiosk/internal/server/sse"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const mjpegBoundary = "frame"

// EventHandler liefert die Live-Vorschau und den SSE-Änderungsfeed
type EventHandler struct {
	camera *camera.Manager
	hub    *sse.Hub
	cfg    config.CameraConfig
}

// NewEventHandler erstellt einen neuen Event-Handler
func NewEventHandler(cam *camera.Manager, hub *sse.Hub, cfg config.CameraConfig) *EventHandler {
	return &EventHandler{
		camera: cam,
		hub:    hub,
		cfg:    cfg,
	}
}

// RegisterRoutes registriert die Stream-Routen
func (h *EventHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/events", h.handleSSE)
	router.GET("/api/camera/stream", h.handleStream)
}

// handleSSE behandelt SSE-Verbindungen für Echtzeit-Updates
func (h *EventHandler) handleSSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	client := make(sse.Client, 10)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		}
	})
}

// handleStream liefert die Kamera als MJPEG (multipart/x-mixed-replace). Der Stream
// endet, sobald die Kamera freigegeben wird.
func (h *EventHandler) handleStream(c *gin.Context) {
	if _, active := h.camera.Active(); !active {
		c.JSON(http.StatusConflict, gin.H{"error": camera.ErrNotStreaming.Error()})
		return
	}

	fps := h.cfg.PreviewFPS
	if fps <= 0 {
		fps = 10
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	c.Header("Cache-Control", "no-cache, no-store")
	c.Header("Connection", "close")

	ctx := c.Request.Context()
	frames := 0
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		if _, active := h.camera.Active(); !active {
			return false
		}
		data, err := h.camera.EncodeLatest(h.cfg.PreviewQuality)
		if errors.Is(err, camera.ErrNotReady) {
			return true
		}
		if err != nil {
			log.WithError(err).Warn("Failed to encode preview frame")
			return false
		}

		if err := writeMJPEGFrame(w, data); err != nil {
			return false
		}
		frames++
		return true
	})
	log.WithField("frames", frames).Debug("Preview stream closed")
}

func writeMJPEGFrame(w io.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

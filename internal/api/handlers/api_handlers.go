package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"faceid-kiosk/internal/api/middleware"
	"faceid-kiosk/internal/camera"
	"faceid-kiosk/internal/capture"
	"faceid-kiosk/internal/integrations/faceapi"
	"faceid-kiosk/internal/kiosk"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// APIHandler behandelt die JSON-Aktionen der Kiosk-Seite
type APIHandler struct {
	kiosk      *kiosk.Kiosk
	translator *middleware.Translator
}

// NewAPIHandler erstellt einen neuen API-Handler
func NewAPIHandler(k *kiosk.Kiosk, translator *middleware.Translator) *APIHandler {
	return &APIHandler{
		kiosk:      k,
		translator: translator,
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/state", h.GetState)
	router.POST("/tabs/:tab", h.SwitchTab)

	// Kamera
	router.POST("/camera/start", h.StartCamera)
	router.POST("/camera/stop", h.StopCamera)

	// Aufnahmen
	router.POST("/captures", h.Capture)
	router.GET("/captures/:index", h.GetCapture)
	router.DELETE("/captures/:index", h.DeleteCapture)

	// Registrierung und Erkennung
	router.PUT("/form", h.UpdateForm)
	router.POST("/register", h.Register)
	router.POST("/recognize", h.Recognize)

	// Personen beim Erkennungsdienst
	router.GET("/people/:id", h.GetPerson)
	router.DELETE("/people/:id", h.DeletePerson)
}

// startCameraRequest ist der Body von POST /api/camera/start
type startCameraRequest struct {
	Surface string `json:"surface" binding:"required,oneof=register recognize"`
}

// registerForm ist das Formular von PUT /api/form und POST /api/register. Ein leerer Name wird vom
// Kiosk mit einer Statusmeldung abgelehnt.
type registerForm struct {
	Name  string `form:"name" json:"name" binding:"max=100"`
	Email string `form:"email" json:"email" binding:"max=255"`
}

// GetState liefert den lokalisierten Zustand der Seite
func (h *APIHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.localizedState(c))
}

// SwitchTab wechselt den Tab; Kamera und Aufnahmen werden zurückgesetzt
func (h *APIHandler) SwitchTab(c *gin.Context) {
	tab, err := kiosk.ParseTab(c.Param("tab"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.kiosk.SwitchTab(tab); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.localizedState(c)})
}

// StartCamera startet die Kamera für eine Anzeigefläche
func (h *APIHandler) StartCamera(c *gin.Context) {
	var req startCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.kiosk.StartCamera(c.Request.Context(), kiosk.Tab(req.Surface)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.localizedState(c)})
}

// StopCamera gibt die Kamera frei
func (h *APIHandler) StopCamera(c *gin.Context) {
	h.kiosk.StopCamera()
	c.JSON(http.StatusOK, gin.H{"state": h.localizedState(c)})
}

// Capture nimmt ein Standbild vom Registrierungs-Stream auf
func (h *APIHandler) Capture(c *gin.Context) {
	entry, err := h.kiosk.Capture()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"capture": entry,
		"state":   h.localizedState(c),
	})
}

// GetCapture liefert das JPEG eines Standbilds für die Vorschau
func (h *APIHandler) GetCapture(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid capture index"})
		return
	}
	entry, err := h.kiosk.CaptureImage(index)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", entry.Data)
}

// DeleteCapture entfernt ein Standbild
func (h *APIHandler) DeleteCapture(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid capture index"})
		return
	}
	if err := h.kiosk.RemoveCapture(index); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.localizedState(c)})
}

// UpdateForm merkt sich die Eingaben, damit sie Neuzeichnen der Seite überstehen
func (h *APIHandler) UpdateForm(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.kiosk.UpdateForm(form.Name, form.Email)
	c.JSON(http.StatusOK, gin.H{"state": h.localizedState(c)})
}

// Register sendet Name, E-Mail und alle Aufnahmen an den Erkennungsdienst
func (h *APIHandler) Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.kiosk.Register(c.Request.Context(), form.Name, form.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"person_id": resp.PersonID,
		"name":      resp.Name,
		"state":     h.localizedState(c),
	})
}

// Recognize führt eine Erkennung mit dem aktuellen Bild durch. Fehler des Dienstes
// sind Teil des Ergebnisses, nicht des HTTP-Status.
func (h *APIHandler) Recognize(c *gin.Context) {
	result, err := h.kiosk.Recognize(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"state":  h.localizedState(c),
	})
}

// GetPerson liefert eine registrierte Person
func (h *APIHandler) GetPerson(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid person ID"})
		return
	}
	person, err := h.kiosk.LookupPerson(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// DeletePerson löscht eine registrierte Person
func (h *APIHandler) DeletePerson(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid person ID"})
		return
	}
	if err := h.kiosk.DeletePerson(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": h.localizedState(c)})
}

// fail antwortet mit passendem HTTP-Status, der Fehlermeldung und dem aktuellen Zustand.
func (h *APIHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	} else {
		log.WithError(err).WithField("path", c.FullPath()).Debug("Request rejected")
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"state": h.localizedState(c),
	})
}

// statusFor ordnet Fehler einem HTTP-Status zu
func statusFor(err error) int {
	var apiErr *faceapi.APIError
	switch {
	case errors.Is(err, kiosk.ErrUnknownTab),
		errors.Is(err, kiosk.ErrNameRequired),
		errors.Is(err, kiosk.ErrNoImages),
		errors.Is(err, camera.ErrUnknownSurface),
		errors.Is(err, faceapi.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, kiosk.ErrRecognitionInProgress),
		errors.Is(err, kiosk.ErrRegistrationInProgress),
		errors.Is(err, capture.ErrBufferFull),
		errors.Is(err, camera.ErrNotReady),
		errors.Is(err, camera.ErrNotStreaming):
		return http.StatusConflict
	case errors.Is(err, camera.ErrCameraUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, faceapi.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, camera.ErrEncodeFrame):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// localizedState übersetzt alle Statusmeldungen in die Sprache der Anfrage
func (h *APIHandler) localizedState(c *gin.Context) kiosk.State {
	return localizeState(h.kiosk.State(), h.translator, middleware.Language(c))
}

func localizeState(s kiosk.State, translator *middleware.Translator, lang string) kiosk.State {
	translate := func(id string, data map[string]any) string {
		return translator.Translate(lang, id, data)
	}
	s.Alert = s.Alert.Localized(translate)
	s.CaptureStatus = s.CaptureStatus.Localized(translate)
	s.RegisterStatus = s.RegisterStatus.Localized(translate)
	s.Recognition.Status = s.Recognition.Status.Localized(translate)
	return s
}

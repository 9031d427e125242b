package handlers

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"faceid-kiosk/config"
	"faceid-kiosk/internal/api/middleware"
	"faceid-kiosk/internal/integrations/faceapi"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// WebHandler rendert die Kiosk-Seite
type WebHandler struct {
	cfg        *config.Config
	translator *middleware.Translator
	templates  *template.Template
	static     fs.FS
}

// NewWebHandler erstellt einen neuen Web-Handler. templates enthält templates/*.html,
// static die Dateien unter /static.
func NewWebHandler(cfg *config.Config, translator *middleware.Translator, templates fs.FS, static fs.FS) (*WebHandler, error) {
	h := &WebHandler{
		cfg:        cfg,
		translator: translator,
		static:     static,
	}

	funcMap := template.FuncMap{
		"formatConfidence": faceapi.ConfidencePercent,
		"inc": func(i int) int {
			return i + 1
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	h.templates = tmpl
	log.Infof("Loaded %d templates", len(tmpl.Templates()))
	return h, nil
}

// RegisterRoutes registriert alle Web-Routen
func (h *WebHandler) RegisterRoutes(router *gin.Engine) {
	router.StaticFS("/static", http.FS(h.static))
	router.GET("/", h.handleIndex)
}

func (h *WebHandler) handleIndex(c *gin.Context) {
	h.renderTemplate(c, "index.html", gin.H{
		"MinCaptures": h.cfg.Kiosk.MinCaptures,
		"MaxCaptures": h.cfg.Kiosk.MaxCaptures,
	})
}

// renderTemplate rendert ein Template in der Sprache der Anfrage
func (h *WebHandler) renderTemplate(c *gin.Context, name string, data gin.H) {
	if h.templates.Lookup(name) == nil {
		log.Errorf("Template %s not found", name)
		c.String(http.StatusInternalServerError, "Template not found")
		return
	}

	language := middleware.Language(c)
	data["Language"] = language
	data["Languages"] = h.translator.Languages()
	data["T"] = func(key string, kv ...any) string {
		var args map[string]any
		if len(kv) > 1 {
			args = make(map[string]any, len(kv)/2)
			for i := 0; i+1 < len(kv); i += 2 {
				if k, ok := kv[i].(string); ok {
					args[k] = kv[i+1]
				}
			}
		}
		return h.translator.Translate(language, key, args)
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		log.Errorf("Template execution error: %v", err)
		c.String(http.StatusInternalServerError, "Template error: "+err.Error())
	}
}

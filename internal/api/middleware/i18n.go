package middleware

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

// Kontext-Schlüssel, unter denen die Middleware ihre Werte ablegt
const (
	ContextLanguage   = "language"
	ContextTranslator = "translator"

	sessionLanguageKey = "language"
)

// I18nConfig definiert die Konfiguration für die i18n-Middleware
type I18nConfig struct {
	DefaultLanguage string
	// Locales enthält die Übersetzungsdateien (<sprache>.json)
	Locales fs.FS
	Dir     string
}

// Translator hält die Übersetzungsfunktionalität
type Translator struct {
	bundle     *i18n.Bundle
	localizers map[string]*i18n.Localizer
	matcher    language.Matcher
	tags       []language.Tag
	fallback   string
}

// NewTranslator lädt alle Übersetzungsdateien aus config.Locales.
func NewTranslator(config I18nConfig) (*Translator, error) {
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = "en"
	}
	if config.Dir == "" {
		config.Dir = "."
	}

	defaultTag, err := language.Parse(config.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", config.DefaultLanguage, err)
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{
		bundle:     bundle,
		localizers: make(map[string]*i18n.Localizer),
		fallback:   defaultTag.String(),
	}

	entries, err := fs.ReadDir(config.Locales, config.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read locales: %w", err)
	}

	// Standardsprache zuerst, damit der Matcher auf sie zurückfällt
	t.tags = append(t.tags, defaultTag)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		filePath := path.Join(config.Dir, entry.Name())
		data, err := fs.ReadFile(config.Locales, filePath)
		if err != nil {
			return nil, err
		}
		file, err := bundle.ParseMessageFileBytes(data, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}

		code := file.Tag.String()
		t.localizers[code] = i18n.NewLocalizer(bundle, code, t.fallback)
		if file.Tag != defaultTag {
			t.tags = append(t.tags, file.Tag)
		}
		log.WithFields(log.Fields{"language": code, "messages": len(file.Messages)}).Debug("Loaded translations")
	}

	if _, ok := t.localizers[t.fallback]; !ok {
		return nil, fmt.Errorf("no translations for default language %q", t.fallback)
	}
	t.matcher = language.NewMatcher(t.tags)
	return t, nil
}

// Languages liefert die unterstützten Sprachcodes, sortiert.
func (t *Translator) Languages() []string {
	langs := make([]string, 0, len(t.localizers))
	for code := range t.localizers {
		langs = append(langs, code)
	}
	sort.Strings(langs)
	return langs
}

// Supports prüft, ob für lang Übersetzungen geladen sind.
func (t *Translator) Supports(lang string) bool {
	_, ok := t.localizers[lang]
	return ok
}

// Match wählt die beste unterstützte Sprache für einen Accept-Language-Header.
func (t *Translator) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.fallback
	}
	_, index, _ := t.matcher.Match(tags...)
	base, _ := t.tags[index].Base()
	if t.Supports(base.String()) {
		return base.String()
	}
	return t.tags[index].String()
}

// Translate übersetzt id in lang. Fehlt die Übersetzung, wird die ID zurückgegeben.
func (t *Translator) Translate(lang, id string, data map[string]any) string {
	localizer, ok := t.localizers[lang]
	if !ok {
		localizer = t.localizers[t.fallback]
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		log.WithError(err).WithField("id", id).Debug("Missing translation")
		return id
	}
	return msg
}

// I18n erstellt eine Middleware für die Internationalisierung. Die Sprache kommt aus
// ?lang=, dann aus der Session, dann aus Accept-Language.
func I18n(translator *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && translator.Supports(lang) {
			session.Set(sessionLanguageKey, lang)
			if err := session.Save(); err != nil {
				log.WithError(err).Warn("Failed to save language in session")
			}
		} else if stored, ok := session.Get(sessionLanguageKey).(string); ok && translator.Supports(stored) {
			lang = stored
		} else {
			lang = translator.Match(c.GetHeader("Accept-Language"))
		}

		c.Set(ContextLanguage, lang)
		c.Set(ContextTranslator, translator)
		c.Next()
	}
}

// Language liefert die von der Middleware gewählte Sprache.
func Language(c *gin.Context) string {
	return c.GetString(ContextLanguage)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func testLocales() fstest.MapFS {
	return fstest.MapFS{
		"locales/en.json": {Data: []byte(`{"register": {"success": "Successfully registered {{.Name}}!"}, "ui": {"title": "Face Recognition System"}}`)},
		"locales/de.json": {Data: []byte(`{"register": {"success": "{{.Name}} wurde erfolgreich registriert!"}}`)},
	}
}

func newTestTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := NewTranslator(I18nConfig{DefaultLanguage: "en", Locales: testLocales(), Dir: "locales"})
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	return tr
}

func TestTranslate(t *testing.T) {
	tr := newTestTranslator(t)

	if got := tr.Translate("en", "register.success", map[string]any{"Name": "Alice"}); got != "Successfully registered Alice!" {
		t.Errorf("Unexpected en text %q", got)
	}
	if got := tr.Translate("de", "register.success", map[string]any{"Name": "Alice"}); got != "Alice wurde erfolgreich registriert!" {
		t.Errorf("Unexpected de text %q", got)
	}
	if got := tr.Translate("de", "ui.title", nil); got != "Face Recognition System" {
		t.Errorf("Expected fallback to en, got %q", got)
	}
	if got := tr.Translate("en", "does.not.exist", nil); got != "does.not.exist" {
		t.Errorf("Expected message id for missing text, got %q", got)
	}
	if langs := tr.Languages(); len(langs) != 2 || langs[0] != "de" || langs[1] != "en" {
		t.Errorf("Unexpected languages %v", langs)
	}
}

func TestNewTranslatorRequiresDefaultLanguage(t *testing.T) {
	_, err := NewTranslator(I18nConfig{DefaultLanguage: "fr", Locales: testLocales(), Dir: "locales"})
	if err == nil {
		t.Error("Expected error without translations for the default language")
	}
}

func TestMatch(t *testing.T) {
	tr := newTestTranslator(t)
	tests := map[string]string{
		"de-DE,de;q=0.9,en;q=0.8": "de",
		"en-US":                   "en",
		"fr-FR":                   "en",
		"":                        "en",
	}
	for header, want := range tests {
		if got := tr.Match(header); got != want {
			t.Errorf("Match(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestI18nMiddlewareRemembersLanguage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tr := newTestTranslator(t)

	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
	r.Use(I18n(tr))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Language(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?lang=de", nil))
	if w.Body.String() != "de" {
		t.Fatalf("Expected de, got %q", w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("Expected session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "de" {
		t.Errorf("Expected language from session, got %q", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/?lang=xx", nil)
	req.Header.Set("Accept-Language", "de")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "de" {
		t.Errorf("Expected language from Accept-Language, got %q", w.Body.String())
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration des Kiosks
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	FaceAPI FaceAPIConfig `mapstructure:"faceapi"`
	Camera  CameraConfig  `mapstructure:"camera"`
	Kiosk   KioskConfig   `mapstructure:"kiosk"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Session SessionConfig `mapstructure:"session"`
	I18n    I18nConfig    `mapstructure:"i18n"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// GinMode is passed to gin.SetMode ("debug", "release", "test").
	GinMode string `mapstructure:"gin_mode"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// FaceAPIConfig describes the remote recognition service.
type FaceAPIConfig struct {
	URL            string `mapstructure:"url"`
	APIPrefix      string `mapstructure:"api_prefix"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// CheckOnStartup pings the service root once during startup and logs the result.
	CheckOnStartup bool `mapstructure:"check_on_startup"`
}

// CameraConfig enthält Einstellungen für die Webcam
type CameraConfig struct {
	// Driver is "opencv" for a real webcam or "fake" for a synthetic test picture.
	Driver   string `mapstructure:"driver"`
	DeviceID int    `mapstructure:"device_id"`
	// Ideal capture size; the device may deliver something else.
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	FPS    int `mapstructure:"fps"`
	// JPEG quality (1-100) for buffered stills and recognition snapshots.
	CaptureQuality   int `mapstructure:"capture_quality"`
	RecognizeQuality int `mapstructure:"recognize_quality"`
	// PreviewFPS limits the MJPEG live preview.
	PreviewFPS     int `mapstructure:"preview_fps"`
	PreviewQuality int `mapstructure:"preview_quality"`
}

// KioskConfig enthält Einstellungen für den Registrierungs-/Erkennungsablauf
type KioskConfig struct {
	MinCaptures int `mapstructure:"min_captures"`
	MaxCaptures int `mapstructure:"max_captures"`
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Retain      bool   `mapstructure:"retain"`

	// Home Assistant MQTT Discovery
	Discovery       bool   `mapstructure:"discovery"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// CORSConfig enthält die erlaubten Ursprünge für die Kiosk-API
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SessionConfig configures the cookie session that remembers the UI language.
type SessionConfig struct {
	Name   string `mapstructure:"name"`
	Secret string `mapstructure:"secret"`
	MaxAge int    `mapstructure:"max_age"`
}

// I18nConfig enthält die Spracheinstellungen
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.SetEnvPrefix("FACEID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Validate prüft Werte, die der Kiosk zwingend braucht
func (c *Config) Validate() error {
	if c.FaceAPI.URL == "" {
		return fmt.Errorf("faceapi.url must be set")
	}
	if c.Kiosk.MinCaptures < 1 {
		return fmt.Errorf("kiosk.min_captures must be at least 1, got %d", c.Kiosk.MinCaptures)
	}
	if c.Kiosk.MaxCaptures != 0 && c.Kiosk.MaxCaptures < c.Kiosk.MinCaptures {
		return fmt.Errorf("kiosk.max_captures (%d) must not be below kiosk.min_captures (%d)", c.Kiosk.MaxCaptures, c.Kiosk.MinCaptures)
	}
	switch c.Camera.Driver {
	case "opencv", "fake":
	default:
		return fmt.Errorf("camera.driver must be \"opencv\" or \"fake\", got %q", c.Camera.Driver)
	}
	for _, q := range []int{c.Camera.CaptureQuality, c.Camera.RecognizeQuality, c.Camera.PreviewQuality} {
		if q < 1 || q > 100 {
			return fmt.Errorf("camera jpeg quality must be between 1 and 100, got %d", q)
		}
	}
	return nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.gin_mode", "release")

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	// Face-API-Standardwerte
	v.SetDefault("faceapi.url", "http://localhost:8000")
	v.SetDefault("faceapi.api_prefix", "/api/v1")
	v.SetDefault("faceapi.timeout_seconds", 30)
	v.SetDefault("faceapi.check_on_startup", true)

	// Kamera-Standardwerte (ideal 1280x720 wie beim Browser-getUserMedia)
	v.SetDefault("camera.driver", "opencv")
	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.fps", 30)
	v.SetDefault("camera.capture_quality", 92)
	v.SetDefault("camera.recognize_quality", 95)
	v.SetDefault("camera.preview_fps", 10)
	v.SetDefault("camera.preview_quality", 70)

	// Kiosk-Standardwerte
	v.SetDefault("kiosk.min_captures", 3)
	v.SetDefault("kiosk.max_captures", 20)

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "faceid-kiosk")
	v.SetDefault("mqtt.topic_prefix", "faceid")
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.discovery", false)
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("session.name", "faceid_session")
	v.SetDefault("session.secret", "change-me")
	v.SetDefault("session.max_age", 86400*30)

	v.SetDefault("i18n.default_language", "en")
}

// ensureDirectories stellt sicher, dass das Log-Verzeichnis existiert
func ensureDirectories(cfg *Config) error {
	if cfg.Log.File == "" {
		return nil
	}
	logDir := filepath.Dir(cfg.Log.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

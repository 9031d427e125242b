package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faceid-kiosk/config"
	"faceid-kiosk/internal/api"
	"faceid-kiosk/internal/api/middleware"
	"faceid-kiosk/internal/camera"
	"faceid-kiosk/internal/capture"
	"faceid-kiosk/internal/integrations/faceapi"
	"faceid-kiosk/internal/integrations/homeassistant"
	"faceid-kiosk/internal/integrations/mqtt"
	"faceid-kiosk/internal/integrations/opencv"
	"faceid-kiosk/internal/kiosk"
	"faceid-kiosk/internal/logger"
	"faceid-kiosk/internal/server/sse"
	"faceid-kiosk/web"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "faceid-kiosk",
	Short:   "Face registration and recognition kiosk",
	Version: Version,
	Long: `faceid-kiosk drives a local webcam and serves a registration and
recognition page. Captured faces are sent to a remote FaceID service.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the FaceID service is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		info, err := faceapi.NewClient(cfg.FaceAPI).Info(cmd.Context())
		if err != nil {
			return fmt.Errorf("FaceID service at %s is not reachable: %w", cfg.FaceAPI.URL, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", info.Name, info.Version, cfg.FaceAPI.URL)
		return nil
	},
}

func init() {
	cobra.OnInitialize(func() {
		// .env ist optional
		_ = godotenv.Load()
	})
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/config/config.yaml", "Path to the config file")
	rootCmd.AddCommand(pingCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logFile, err := logger.Init(cfg.Log)
	if err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Face API
	faceClient := faceapi.NewClient(cfg.FaceAPI)
	if cfg.FaceAPI.CheckOnStartup {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if info, err := faceClient.Info(checkCtx); err != nil {
			log.WithError(err).Warnf("FaceID service at %s is not reachable yet", cfg.FaceAPI.URL)
		} else {
			log.WithFields(log.Fields{"name": info.Name, "version": info.Version}).Info("FaceID service reachable")
		}
		cancel()
	}

	// Kamera
	var opener camera.Opener
	switch cfg.Camera.Driver {
	case "fake":
		fake := &camera.FakeOpener{Width: cfg.Camera.Width, Height: cfg.Camera.Height}
		opener = fake.Open
		log.Warn("Using synthetic camera, no webcam will be opened")
	default:
		opener = opencv.NewOpener(cfg.Camera)
	}
	manager := camera.NewManager(opener)

	// SSE
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := sse.NewHub()
	go hub.Run(hubCtx)

	options := []kiosk.Option{kiosk.WithNotifier(hub)}

	// MQTT
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to start MQTT client: %v. Continuing without MQTT.", err)
			mqttClient = nil
		} else {
			defer mqttClient.Stop()
			options = append(options, kiosk.WithPublisher(mqttClient))

			if cfg.MQTT.Discovery {
				discovery := homeassistant.NewDiscoveryManager(mqttClient, cfg.MQTT.DiscoveryPrefix, cfg.MQTT.ClientID, Version)
				if err := discovery.RegisterSensors(); err != nil {
					log.WithError(err).Warn("Home Assistant discovery failed")
				}
			}
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	k := kiosk.New(manager, faceClient, capture.NewBuffer(cfg.Kiosk.MaxCaptures), kiosk.Options{
		MinCaptures:      cfg.Kiosk.MinCaptures,
		CaptureQuality:   cfg.Camera.CaptureQuality,
		RecognizeQuality: cfg.Camera.RecognizeQuality,
	}, options...)
	defer k.Close()

	if mqttClient != nil {
		timeout := time.Duration(cfg.FaceAPI.TimeoutSeconds) * time.Second
		mqttClient.RegisterHandler(mqtt.NewCommandHandler(k, mqttClient, timeout))
	}

	// HTTP
	translator, err := middleware.NewTranslator(middleware.I18nConfig{
		DefaultLanguage: cfg.I18n.DefaultLanguage,
		Locales:         web.Locales,
		Dir:             "locales",
	})
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return err
	}

	router, err := api.NewRouter(cfg, api.Deps{
		Kiosk:      k,
		Camera:     manager,
		Hub:        hub,
		Translator: translator,
		Assets:     api.Assets{Templates: web.Templates, Static: static},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize web handlers: %w", err)
	}

	server := api.NewServer(cfg.Server, router)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")

	// SSE-Verbindungen zuerst schließen, sonst wartet Shutdown auf sie
	stopHub()
	k.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("Server stopped")
	return nil
}

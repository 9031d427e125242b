package mqtt

import (
	"context"
	"strings"
	"time"

	"faceid-kiosk/internal/integrations/faceapi"
	"faceid-kiosk/internal/kiosk"

	log "github.com/sirupsen/logrus"
)

// Kommandos unterhalb von <prefix>/command/
const (
	CommandRecognize = "recognize"
	CommandTab       = "tab"
	CommandCamera    = "camera"
)

// Commander ist der Teil des Kiosks, den Fernkommandos steuern dürfen.
type Commander interface {
	Recognize(ctx context.Context) (faceapi.Result, error)
	SwitchTab(tab kiosk.Tab) error
	StartCamera(ctx context.Context, tab kiosk.Tab) error
	StopCamera()
}

// CommandHandler übersetzt MQTT-Kommandos in Kiosk-Aktionen.
//
//	<prefix>/command/recognize            startet eine Erkennung
//	<prefix>/command/tab      "recognize" wechselt den Tab
//	<prefix>/command/camera   "register"  startet die Kamera, "stop" beendet sie
type CommandHandler struct {
	kiosk   Commander
	prefix  string
	timeout time.Duration
}

// NewCommandHandler erstellt einen Handler für Topics unter client.Topic(TopicCommand).
func NewCommandHandler(k Commander, client *Client, timeout time.Duration) *CommandHandler {
	return &CommandHandler{
		kiosk:   k,
		prefix:  client.Topic(TopicCommand) + "/",
		timeout: timeout,
	}
}

// HandleMessage implementiert MessageHandler.
func (h *CommandHandler) HandleMessage(topic string, payload []byte) {
	if !strings.HasPrefix(topic, h.prefix) {
		return
	}
	command := strings.TrimPrefix(topic, h.prefix)
	arg := strings.TrimSpace(string(payload))

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	logger := log.WithFields(log.Fields{"command": command, "arg": arg})

	var err error
	switch command {
	case CommandRecognize:
		var result faceapi.Result
		result, err = h.kiosk.Recognize(ctx)
		if err == nil {
			logger = logger.WithField("outcome", result.Outcome)
		}
	case CommandTab:
		err = h.kiosk.SwitchTab(kiosk.Tab(arg))
	case CommandCamera:
		if arg == "stop" {
			h.kiosk.StopCamera()
		} else {
			err = h.kiosk.StartCamera(ctx, kiosk.Tab(arg))
		}
	default:
		logger.Warn("Unknown MQTT command")
		return
	}

	if err != nil {
		logger.WithError(err).Error("MQTT command failed")
		return
	}
	logger.Info("MQTT command executed")
}

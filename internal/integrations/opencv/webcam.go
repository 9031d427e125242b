package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"faceid-kiosk/config"
	"faceid-kiosk/internal/camera"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// errFrameEmpty wird zurückgegeben, wenn die Kamera kein Bild liefert
var errFrameEmpty = errors.New("camera returned an empty frame")

// Webcam ist ein über gocv geöffnetes Aufnahmegerät
type Webcam struct {
	deviceID int
	capture  *gocv.VideoCapture
	mat      gocv.Mat

	mu     sync.Mutex
	closed bool
}

// NewOpener liefert einen camera.Opener, der die konfigurierte Webcam öffnet
func NewOpener(cfg config.CameraConfig) camera.Opener {
	return func(ctx context.Context) (camera.Device, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Open(cfg)
	}
}

// Open öffnet die Webcam und fordert die ideale Auflösung an
func Open(cfg config.CameraConfig) (*Webcam, error) {
	capture, err := gocv.VideoCaptureDevice(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("error opening video capture device %d: %w", cfg.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture device %d is not available", cfg.DeviceID)
	}

	// Wunschwerte, das Gerät darf andere Werte liefern
	if cfg.Width > 0 && cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}

	log.WithFields(log.Fields{
		"device": cfg.DeviceID,
		"width":  capture.Get(gocv.VideoCaptureFrameWidth),
		"height": capture.Get(gocv.VideoCaptureFrameHeight),
	}).Info("Webcam opened")

	return &Webcam{
		deviceID: cfg.DeviceID,
		capture:  capture,
		mat:      gocv.NewMat(),
	}, nil
}

// ReadFrame liest das nächste Bild der Kamera
func (w *Webcam) ReadFrame() (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("webcam %d is closed", w.deviceID)
	}
	if ok := w.capture.Read(&w.mat); !ok {
		return nil, fmt.Errorf("cannot read device %d", w.deviceID)
	}
	if w.mat.Empty() {
		return nil, errFrameEmpty
	}

	img, err := w.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

// Close gibt die Kamera und den Bildpuffer frei
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.mat.Close(); err != nil {
		log.Warnf("Failed to release frame buffer: %v", err)
	}
	return w.capture.Close()
}

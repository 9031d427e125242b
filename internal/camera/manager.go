// Package camera owns the single live webcam stream of the kiosk and binds it to
// one of the named display surfaces.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Surface names used by the kiosk.
const (
	SurfaceRegister  = "register"
	SurfaceRecognize = "recognize"
)

var (
	// ErrCameraUnavailable wraps any failure to open the capture device
	// (permission denied, no device, device busy).
	ErrCameraUnavailable = errors.New("could not access the camera")
	// ErrNotStreaming is returned when the requested surface has no stream bound.
	ErrNotStreaming = errors.New("camera is not streaming to this surface")
	// ErrNotReady is returned before the stream delivered its first frame.
	ErrNotReady = errors.New("camera has not delivered a frame yet")
	// ErrUnknownSurface is returned for surface names the manager does not know.
	ErrUnknownSurface = errors.New("unknown display surface")
	// ErrEncodeFrame is returned when a snapshot cannot be encoded.
	ErrEncodeFrame = errors.New("failed to capture image")
)

// Device is an open capture device. Closing it releases every track it holds.
type Device interface {
	ReadFrame() (image.Image, error)
	Close() error
}

// Opener acquires a capture device. It is called once per Start.
type Opener func(ctx context.Context) (Device, error)

// Info describes the active stream for status output.
type Info struct {
	Active  bool   `json:"active"`
	Surface string `json:"surface,omitempty"`
	Ready   bool   `json:"ready"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Frames  uint64 `json:"frames"`
}

// Manager holds at most one active stream. Starting a new stream always releases
// the previous one first.
type Manager struct {
	open     Opener
	surfaces map[string]*Surface

	// startMu serialisiert Start und Stop; mu schützt nur active und wird
	// nie während des Öffnens gehalten.
	startMu sync.Mutex
	mu      sync.Mutex
	active  *stream
}

// NewManager creates a manager with the given surfaces. With no names it creates
// the register and recognize surfaces.
func NewManager(open Opener, surfaceNames ...string) *Manager {
	if len(surfaceNames) == 0 {
		surfaceNames = []string{SurfaceRegister, SurfaceRecognize}
	}
	m := &Manager{
		open:     open,
		surfaces: make(map[string]*Surface, len(surfaceNames)),
	}
	for _, name := range surfaceNames {
		m.surfaces[name] = newSurface(name)
	}
	return m
}

// Surface returns the named surface.
func (m *Manager) Surface(name string) (*Surface, error) {
	s, ok := m.surfaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSurface, name)
	}
	return s, nil
}

// Start opens the camera and binds it to the named surface. Any previous stream is
// released before the device is opened. On failure nothing stays bound.
func (m *Manager) Start(ctx context.Context, surfaceName string) error {
	surface, err := m.Surface(surfaceName)
	if err != nil {
		return err
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.release()

	device, err := m.open(ctx)
	if err != nil {
		log.WithError(err).WithField("surface", surfaceName).Error("Error accessing camera")
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	st := &stream{
		device:  device,
		surface: surface,
		cancel:  cancel,
		done:    make(chan struct{}),
		ready:   make(chan struct{}),
	}
	surface.bind()
	m.mu.Lock()
	m.active = st
	m.mu.Unlock()

	go st.pump(pumpCtx)

	log.WithField("surface", surfaceName).Info("Camera stream started")
	return nil
}

// Stop releases the active stream and detaches it from every surface.
func (m *Manager) Stop() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.release()
}

// release nimmt den aktiven Stream heraus und schließt ihn. Aufrufer hält startMu.
func (m *Manager) release() {
	m.mu.Lock()
	st := m.active
	m.active = nil
	m.mu.Unlock()

	if st == nil {
		return
	}

	st.cancel()
	<-st.done

	if err := st.device.Close(); err != nil {
		log.WithError(err).Warn("Failed to release camera device")
	}
	for _, s := range m.surfaces {
		s.detach()
	}
	log.WithFields(log.Fields{
		"surface": st.surface.Name(),
		"frames":  st.frames.Load(),
	}).Info("Camera stream stopped")
}

// Active reports whether a stream is running and which surface it is bound to.
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", false
	}
	return m.active.surface.Name(), true
}

// Info returns a status snapshot of the active stream.
func (m *Manager) Info() Info {
	m.mu.Lock()
	st := m.active
	m.mu.Unlock()

	if st == nil {
		return Info{}
	}
	w, h := st.surface.Size()
	return Info{
		Active:  true,
		Surface: st.surface.Name(),
		Ready:   st.isReady(),
		Width:   w,
		Height:  h,
		Frames:  st.frames.Load(),
	}
}

// WaitReady blocks until the active stream delivered its first frame.
func (m *Manager) WaitReady(ctx context.Context) error {
	m.mu.Lock()
	st := m.active
	m.mu.Unlock()

	if st == nil {
		return ErrNotStreaming
	}
	select {
	case <-st.ready:
		return nil
	case <-st.done:
		return ErrNotStreaming
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recent frame of the active stream, if any.
func (m *Manager) Latest() (image.Image, bool) {
	m.mu.Lock()
	st := m.active
	m.mu.Unlock()

	if st == nil {
		return nil, false
	}
	frame := st.frame()
	return frame, frame != nil
}

// Snapshot draws the current frame of the stream bound to surfaceName onto that
// surface's drawing buffer and returns it JPEG-encoded.
func (m *Manager) Snapshot(surfaceName string, q Quality, jpegQuality int) ([]byte, error) {
	surface, err := m.Surface(surfaceName)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	st := m.active
	m.mu.Unlock()

	if st == nil || st.surface != surface {
		return nil, ErrNotStreaming
	}

	frame := st.frame()
	if frame == nil {
		return nil, ErrNotReady
	}

	return surface.snapshot(frame, q, jpegQuality)
}

// EncodeLatest returns the latest frame JPEG-encoded without touching any surface.
// Used for the live preview.
func (m *Manager) EncodeLatest(jpegQuality int) ([]byte, error) {
	frame, ok := m.Latest()
	if !ok {
		return nil, ErrNotReady
	}
	return encodeJPEG(frame, jpegQuality)
}

// stream is one open device plus the goroutine pumping frames out of it.
type stream struct {
	device  Device
	surface *Surface
	cancel  context.CancelFunc
	done    chan struct{}

	ready     chan struct{}
	readyOnce sync.Once

	mu     sync.RWMutex
	latest image.Image
	frames atomic.Uint64
}

// readErrorBackoff throttles the pump while the device keeps failing.
const readErrorBackoff = 50 * time.Millisecond

func (st *stream) pump(ctx context.Context) {
	defer close(st.done)

	var failures int
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := st.device.ReadFrame()
		if err != nil {
			failures++
			if failures == 1 || failures%100 == 0 {
				log.WithError(err).WithField("failures", failures).Warn("Failed to grab frame")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		failures = 0

		st.mu.Lock()
		st.latest = frame
		st.mu.Unlock()
		st.frames.Add(1)

		st.readyOnce.Do(func() {
			b := frame.Bounds()
			st.surface.resize(b.Dx(), b.Dy())
			close(st.ready)
			log.WithFields(log.Fields{
				"surface": st.surface.Name(),
				"width":   b.Dx(),
				"height":  b.Dy(),
			}).Debug("Camera metadata loaded")
		})
	}
}

func (st *stream) frame() image.Image {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.latest
}

func (st *stream) isReady() bool {
	select {
	case <-st.ready:
		return true
	default:
		return false
	}
}

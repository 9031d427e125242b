package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"golang.org/x/image/draw"
)

// Fallback drawing-buffer size used until the stream reports its native resolution.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Quality selects the scaler used when a frame is drawn onto a surface.
type Quality int

const (
	// QualityStandard is a fast bilinear approximation, good enough for buffered stills.
	QualityStandard Quality = iota
	// QualityHigh uses Catmull-Rom resampling for recognition snapshots.
	QualityHigh
)

func (q Quality) scaler() draw.Scaler {
	if q == QualityHigh {
		return draw.CatmullRom
	}
	return draw.ApproxBiLinear
}

// Surface is a named display binding ("register", "recognize") with a reusable
// drawing buffer. Only one surface is bound to the active stream at a time.
type Surface struct {
	name string

	mu     sync.Mutex
	width  int
	height int
	canvas *image.RGBA
	bound  bool
}

func newSurface(name string) *Surface {
	return &Surface{
		name:   name,
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// Name returns the surface name.
func (s *Surface) Name() string { return s.name }

// Size returns the current drawing-buffer dimensions.
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Bound reports whether a stream is currently attached to the surface.
func (s *Surface) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *Surface) bind() {
	s.mu.Lock()
	s.bound = true
	s.mu.Unlock()
}

// detach unbinds the surface and drops the drawing buffer. The size is kept so the
// next stream starts from the last known resolution.
func (s *Surface) detach() {
	s.mu.Lock()
	s.bound = false
	s.canvas = nil
	s.mu.Unlock()
}

// resize matches the drawing buffer to the stream's native resolution.
func (s *Surface) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width == width && s.height == height && s.canvas != nil {
		return
	}
	s.width, s.height = width, height
	s.canvas = nil
}

// snapshot draws frame onto the drawing buffer and encodes the buffer as JPEG.
func (s *Surface) snapshot(frame image.Image, q Quality, jpegQuality int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canvas == nil || s.canvas.Bounds().Dx() != s.width || s.canvas.Bounds().Dy() != s.height {
		s.canvas = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	}

	q.scaler().Scale(s.canvas, s.canvas.Bounds(), frame, frame.Bounds(), draw.Src, nil)

	return encodeJPEG(s.canvas, jpegQuality)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFrame, err)
	}
	if buf.Len() == 0 {
		return nil, ErrEncodeFrame
	}
	return buf.Bytes(), nil
}

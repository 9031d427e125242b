package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"
)

// FakeDevice is a synthetic capture device for tests and for running the kiosk
// without a webcam. It produces a solid-colour frame of a fixed size.
type FakeDevice struct {
	frame    *image.RGBA
	interval time.Duration

	closed atomic.Bool
	reads  atomic.Int64
}

// NewFakeDevice creates a fake device delivering width x height frames.
func NewFakeDevice(width, height int, c color.Color) *FakeDevice {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return &FakeDevice{frame: img, interval: 5 * time.Millisecond}
}

// ReadFrame returns the synthetic frame, paced like a real device.
func (d *FakeDevice) ReadFrame() (image.Image, error) {
	if d.closed.Load() {
		return nil, errors.New("device closed")
	}
	time.Sleep(d.interval)
	d.reads.Add(1)
	return d.frame, nil
}

// Close marks the device released.
func (d *FakeDevice) Close() error {
	d.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (d *FakeDevice) Closed() bool { return d.closed.Load() }

// Reads returns how many frames were delivered.
func (d *FakeDevice) Reads() int64 { return d.reads.Load() }

// FakeOpener hands out FakeDevices and remembers them, or fails with Err when set.
type FakeOpener struct {
	Width, Height int
	Err           error

	mu      sync.Mutex
	devices []*FakeDevice
}

// Open implements Opener.
func (o *FakeOpener) Open(ctx context.Context) (Device, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	w, h := o.Width, o.Height
	if w == 0 || h == 0 {
		w, h = 320, 240
	}
	d := NewFakeDevice(w, h, color.RGBA{R: 200, G: 160, B: 120, A: 255})
	o.mu.Lock()
	o.devices = append(o.devices, d)
	o.mu.Unlock()
	return d, nil
}

// Devices returns every device opened so far.
func (o *FakeOpener) Devices() []*FakeDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*FakeDevice, len(o.devices))
	copy(out, o.devices)
	return out
}

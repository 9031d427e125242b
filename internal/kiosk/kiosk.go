// Package kiosk is the controller behind the registration and recognition page.
// It owns the capture buffer and the form, drives the camera manager and calls the
// remote face API. All state changes go through the Kiosk so the page can render a
// consistent snapshot.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"faceid-kiosk/internal/camera"
	"faceid-kiosk/internal/capture"
	"faceid-kiosk/internal/integrations/faceapi"

	log "github.com/sirupsen/logrus"
)

// Tab is one of the two pages of the kiosk.
type Tab string

const (
	TabRegister  Tab = "register"
	TabRecognize Tab = "recognize"
)

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabRegister, TabRecognize:
		return Tab(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
}

var (
	ErrUnknownTab             = errors.New("unknown tab")
	ErrNameRequired           = errors.New("name is required")
	ErrNoImages               = errors.New("at least one captured image is required")
	ErrRegistrationInProgress = errors.New("registration already in progress")
	ErrRecognitionInProgress  = errors.New("recognition already in progress")
)

// Camera is the part of camera.Manager the kiosk uses.
type Camera interface {
	Start(ctx context.Context, surface string) error
	Stop()
	Snapshot(surface string, q camera.Quality, jpegQuality int) ([]byte, error)
	Active() (string, bool)
}

// FaceAPI is the remote recognition service.
type FaceAPI interface {
	Register(ctx context.Context, req faceapi.RegisterRequest) (*faceapi.RegisterResponse, error)
	Recognize(ctx context.Context, image []byte) (*faceapi.RecognizeResponse, error)
	GetPerson(ctx context.Context, id int) (*faceapi.PersonDetails, error)
	DeletePerson(ctx context.Context, id int) error
}

// Notifier is told about every state change, e.g. to push an SSE event.
type Notifier interface {
	NotifyStateChanged(version uint64)
}

// Options tunes the flows.
type Options struct {
	MinCaptures      int
	CaptureQuality   int
	RecognizeQuality int
}

// Option configures optional collaborators.
type Option func(*Kiosk)

// WithPublisher sends registration and recognition events to p.
func WithPublisher(p Publisher) Option {
	return func(k *Kiosk) { k.publisher = p }
}

// WithNotifier registers a state-change listener.
func WithNotifier(n Notifier) Option {
	return func(k *Kiosk) { k.notifiers = append(k.notifiers, n) }
}

// Form holds the registration inputs.
type Form struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Kiosk is the single controller of the page session.
type Kiosk struct {
	camera    Camera
	api       FaceAPI
	buffer    *capture.Buffer
	opts      Options
	publisher Publisher
	notifiers []Notifier

	registering atomic.Bool
	recognizing atomic.Bool
	version     atomic.Uint64

	mu             sync.Mutex
	tab            Tab
	form           Form
	alert          *Status
	captureStatus  *Status
	registerStatus *Status
	recognition    RecognitionView
	lastRegistered *RegisteredPerson
}

// New creates a kiosk on the register tab with an empty buffer.
func New(cam Camera, api FaceAPI, buffer *capture.Buffer, opts Options, options ...Option) *Kiosk {
	if opts.MinCaptures < 1 {
		opts.MinCaptures = 1
	}
	if opts.CaptureQuality == 0 {
		opts.CaptureQuality = 92
	}
	if opts.RecognizeQuality == 0 {
		opts.RecognizeQuality = 95
	}
	k := &Kiosk{
		camera: cam,
		api:    api,
		buffer: buffer,
		opts:   opts,
		tab:    TabRegister,
	}
	for _, o := range options {
		o(k)
	}
	return k
}

func (k *Kiosk) changed() {
	v := k.version.Add(1)
	for _, n := range k.notifiers {
		n.NotifyStateChanged(v)
	}
}

// SwitchTab stops the camera, clears the capture buffer and resets the controls.
func (k *Kiosk) SwitchTab(tab Tab) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}

	k.camera.Stop()
	k.buffer.Clear()

	k.mu.Lock()
	k.tab = tab
	k.alert = nil
	k.captureStatus = nil
	k.registerStatus = nil
	k.mu.Unlock()

	log.WithField("tab", tab).Debug("Switched tab")
	k.changed()
	return nil
}

// StartCamera binds a fresh stream to the surface of the given tab. On failure a
// camera alert is shown and nothing stays bound.
func (k *Kiosk) StartCamera(ctx context.Context, tab Tab) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}

	err := k.camera.Start(ctx, string(tab))

	k.mu.Lock()
	if err != nil {
		k.alert = newStatus(MsgCameraUnavailable, SeverityDanger)
	} else {
		k.alert = nil
	}
	k.captureStatus = nil
	k.mu.Unlock()

	k.changed()
	return err
}

// StopCamera releases the active stream.
func (k *Kiosk) StopCamera() {
	k.camera.Stop()
	k.changed()
}

// Capture snapshots the register stream into the capture buffer.
func (k *Kiosk) Capture() (capture.Entry, error) {
	data, err := k.camera.Snapshot(camera.SurfaceRegister, camera.QualityStandard, k.opts.CaptureQuality)
	if err != nil {
		if errors.Is(err, camera.ErrNotReady) {
			k.setCaptureStatus(newStatus(MsgCameraNotReady, SeverityWarning))
		}
		return capture.Entry{}, err
	}

	entry, err := k.buffer.Append(data)
	if err != nil {
		if errors.Is(err, capture.ErrBufferFull) {
			k.setCaptureStatus(newStatus(MsgCaptureFull, SeverityWarning))
		}
		return capture.Entry{}, err
	}

	log.WithFields(log.Fields{"id": entry.ID, "size": entry.Size, "count": k.buffer.Len()}).Debug("Captured image")
	k.setCaptureStatus(nil)
	return entry, nil
}

func (k *Kiosk) setCaptureStatus(s *Status) {
	k.mu.Lock()
	k.captureStatus = s
	k.mu.Unlock()
	k.changed()
}

// RemoveCapture deletes one buffered still, keeping the order of the others.
func (k *Kiosk) RemoveCapture(index int) error {
	if err := k.buffer.Remove(index); err != nil {
		return err
	}
	k.changed()
	return nil
}

// CaptureImage returns a buffered still for the preview strip.
func (k *Kiosk) CaptureImage(index int) (capture.Entry, error) {
	return k.buffer.Get(index)
}

// UpdateForm stores the registration inputs without submitting.
func (k *Kiosk) UpdateForm(name, email string) {
	k.mu.Lock()
	k.form = Form{Name: name, Email: email}
	k.mu.Unlock()
	k.changed()
}

// Register validates the form and buffer and submits everything in one request.
// On success the form and buffer are cleared. On failure client state is kept.
func (k *Kiosk) Register(ctx context.Context, name, email string) (*faceapi.RegisterResponse, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	k.mu.Lock()
	k.form = Form{Name: name, Email: email}
	if name == "" {
		k.registerStatus = newStatus(MsgNameRequired, SeverityDanger)
		k.mu.Unlock()
		k.changed()
		return nil, ErrNameRequired
	}
	if k.buffer.Len() == 0 {
		k.registerStatus = newStatus(MsgNoImages, SeverityDanger)
		k.mu.Unlock()
		k.changed()
		return nil, ErrNoImages
	}
	if !k.registering.CompareAndSwap(false, true) {
		k.mu.Unlock()
		return nil, ErrRegistrationInProgress
	}
	k.registerStatus = newStatus(MsgRegistering, SeverityNeutral)
	images := k.buffer.Images()
	k.mu.Unlock()
	k.changed()

	defer k.registering.Store(false)

	resp, err := k.api.Register(ctx, faceapi.RegisterRequest{Name: name, Email: email, Images: images})

	k.mu.Lock()
	if err != nil {
		var apiErr *faceapi.APIError
		if errors.As(err, &apiErr) && !apiErr.Malformed {
			k.registerStatus = newStatus(MsgRegisterAPIError, SeverityDanger, "Message", apiErr.UserMessage())
		} else {
			k.registerStatus = newStatus(MsgRegisterFailed, SeverityDanger)
		}
		k.mu.Unlock()
		log.WithError(err).WithField("name", name).Error("Registration error")
		k.changed()
		return nil, err
	}

	k.registerStatus = newStatus(MsgRegistered, SeveritySuccess, "Name", name)
	k.form = Form{}
	k.buffer.Clear()
	k.lastRegistered = &RegisteredPerson{ID: resp.PersonID, Name: name}
	k.mu.Unlock()

	log.WithFields(log.Fields{"name": name, "person_id": resp.PersonID, "images": len(images)}).Info("Person registered")
	k.publish(func(p Publisher) error {
		return p.PublishRegistration(RegistrationEvent{
			PersonID:  resp.PersonID,
			Name:      name,
			Email:     email,
			Images:    len(images),
			Timestamp: time.Now(),
		})
	})
	k.changed()
	return resp, nil
}

// Recognize snapshots one high-quality frame from the recognize stream, submits it
// and renders the interpreted result. Only one recognition runs at a time; a second
// call while one is in flight returns ErrRecognitionInProgress and changes nothing.
func (k *Kiosk) Recognize(ctx context.Context) (faceapi.Result, error) {
	if !k.recognizing.CompareAndSwap(false, true) {
		return faceapi.Result{}, ErrRecognitionInProgress
	}
	defer func() {
		k.recognizing.Store(false)
		k.changed()
	}()

	k.setRecognition(RecognitionView{Status: newStatus(MsgRecognizing, SeverityWarning)})

	var result faceapi.Result
	data, err := k.camera.Snapshot(camera.SurfaceRecognize, camera.QualityHigh, k.opts.RecognizeQuality)
	if err != nil {
		log.WithError(err).Error("Recognition error")
		result = faceapi.Result{Outcome: faceapi.OutcomeError, Message: err.Error()}
		k.setRecognition(renderRecognition(result, false))
		return result, nil
	}

	log.WithField("size", len(data)).Debug("Sending image for recognition")

	resp, err := k.api.Recognize(ctx, data)
	networkFailure := false
	switch {
	case err == nil:
		result = faceapi.Interpret(resp)
	case errors.Is(err, faceapi.ErrInvalidResponse):
		result = faceapi.Result{Outcome: faceapi.OutcomeError}
	default:
		var apiErr *faceapi.APIError
		networkFailure = !errors.As(err, &apiErr)
		result = faceapi.ResultFromError(err)
	}
	if result.Outcome == faceapi.OutcomeError {
		log.WithError(err).WithField("message", result.Message).Error("Recognition API error")
	} else {
		log.WithField("outcome", result.Outcome).Info("Recognition result")
	}

	k.setRecognition(renderRecognition(result, networkFailure))
	k.publish(func(p Publisher) error {
		ev := RecognitionEvent{Outcome: result.Outcome, Message: result.Message, Timestamp: time.Now()}
		if result.Person != nil {
			ev.Name = result.Person.Name
			ev.Confidence = result.Person.Confidence
		}
		return p.PublishRecognition(ev)
	})
	return result, nil
}

func (k *Kiosk) setRecognition(v RecognitionView) {
	k.mu.Lock()
	k.recognition = v
	k.mu.Unlock()
	k.changed()
}

// LookupPerson fetches a registered person from the service.
func (k *Kiosk) LookupPerson(ctx context.Context, id int) (*faceapi.PersonDetails, error) {
	return k.api.GetPerson(ctx, id)
}

// DeletePerson removes a registered person from the service.
func (k *Kiosk) DeletePerson(ctx context.Context, id int) error {
	if err := k.api.DeletePerson(ctx, id); err != nil {
		return err
	}
	k.mu.Lock()
	if k.lastRegistered != nil && k.lastRegistered.ID == id {
		k.lastRegistered = nil
	}
	k.mu.Unlock()
	log.WithField("person_id", id).Info("Person deleted")
	k.changed()
	return nil
}

func (k *Kiosk) publish(fn func(Publisher) error) {
	if k.publisher == nil {
		return
	}
	go func() {
		if err := fn(k.publisher); err != nil {
			log.WithError(err).Warn("Failed to publish kiosk event")
		}
	}()
}

// Close releases the camera.
func (k *Kiosk) Close() {
	k.camera.Stop()
}

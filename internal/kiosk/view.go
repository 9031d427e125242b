package kiosk

import (
	"faceid-kiosk/internal/camera"
	"faceid-kiosk/internal/capture"
	"faceid-kiosk/internal/integrations/faceapi"
)

// PersonView is the person panel of the recognize tab.
type PersonView struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Confidence string `json:"confidence"`
}

// RecognitionView is the rendered recognition result.
type RecognitionView struct {
	Status        *Status     `json:"status,omitempty"`
	PersonVisible bool        `json:"person_visible"`
	Person        *PersonView `json:"person,omitempty"`
}

// RegisteredPerson is the person created by the last successful registration.
type RegisteredPerson struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Controls tells the page which buttons are enabled.
type Controls struct {
	Capture   bool `json:"capture"`
	Register  bool `json:"register"`
	Recognize bool `json:"recognize"`
}

// CameraView describes the active stream.
type CameraView struct {
	Active  bool   `json:"active"`
	Surface string `json:"surface,omitempty"`
}

// State is a consistent snapshot of the kiosk.
type State struct {
	Version        uint64            `json:"version"`
	Tab            Tab               `json:"tab"`
	Camera         CameraView        `json:"camera"`
	Alert          *Status           `json:"alert,omitempty"`
	CaptureStatus  *Status           `json:"capture_status,omitempty"`
	Controls       Controls          `json:"controls"`
	Captures       []capture.Entry   `json:"captures"`
	MinCaptures    int               `json:"min_captures"`
	Form           Form              `json:"form"`
	RegisterStatus *Status           `json:"register_status,omitempty"`
	Recognition    RecognitionView   `json:"recognition"`
	Registering    bool              `json:"registering"`
	Recognizing    bool              `json:"recognizing"`
	LastRegistered *RegisteredPerson `json:"last_registered,omitempty"`
}

// State returns the current view state.
func (k *Kiosk) State() State {
	surface, active := k.camera.Active()
	registering := k.registering.Load()
	recognizing := k.recognizing.Load()
	captures := k.buffer.Entries()

	k.mu.Lock()
	defer k.mu.Unlock()

	s := State{
		Version:        k.version.Load(),
		Tab:            k.tab,
		Camera:         CameraView{Active: active, Surface: surface},
		Alert:          k.alert,
		CaptureStatus:  k.captureStatus,
		Captures:       captures,
		MinCaptures:    k.opts.MinCaptures,
		Form:           k.form,
		RegisterStatus: k.registerStatus,
		Recognition:    k.recognition,
		Registering:    registering,
		Recognizing:    recognizing,
		LastRegistered: k.lastRegistered,
	}
	s.Controls = Controls{
		Capture:   active && surface == camera.SurfaceRegister,
		Register:  k.buffer.CanRegister(k.opts.MinCaptures) && !registering,
		Recognize: active && surface == camera.SurfaceRecognize && !recognizing,
	}
	if s.Captures == nil {
		s.Captures = []capture.Entry{}
	}
	return s
}

// renderRecognition maps an interpreted result onto the status line and person panel.
func renderRecognition(r faceapi.Result, networkFailure bool) RecognitionView {
	switch r.Outcome {
	case faceapi.OutcomeMatched:
		email := r.Person.Email
		if email == "" {
			email = "N/A"
		}
		return RecognitionView{
			Status:        newStatus(MsgMatchFound, SeveritySuccess),
			PersonVisible: true,
			Person: &PersonView{
				Name:       r.Person.Name,
				Email:      email,
				Confidence: faceapi.ConfidencePercent(r.Person.Confidence),
			},
		}
	case faceapi.OutcomeNotMatched:
		if r.Message != "" {
			return RecognitionView{Status: newStatus(MsgServerMessage, SeverityInfo, "Message", r.Message)}
		}
		return RecognitionView{Status: newStatus(MsgNoMatch, SeverityInfo)}
	case faceapi.OutcomeNoFace:
		return RecognitionView{Status: newStatus(MsgNoFace, SeverityWarning)}
	}

	switch {
	case networkFailure:
		return RecognitionView{Status: newStatus(MsgRecognizeNetworkFail, SeverityDanger, "Message", r.Message)}
	case r.Message == "":
		return RecognitionView{Status: newStatus(MsgRecognizeUnexpected, SeverityDanger)}
	default:
		return RecognitionView{Status: newStatus(MsgRecognizeError, SeverityDanger, "Message", r.Message)}
	}
}

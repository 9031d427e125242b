package kiosk

import (
	"time"

	"faceid-kiosk/internal/integrations/faceapi"
)

// Publisher forwards kiosk events to other systems, e.g. MQTT.
type Publisher interface {
	PublishRegistration(RegistrationEvent) error
	PublishRecognition(RecognitionEvent) error
}

// RegistrationEvent is emitted after a successful registration.
type RegistrationEvent struct {
	PersonID  int       `json:"person_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Images    int       `json:"images"`
	Timestamp time.Time `json:"timestamp"`
}

// RecognitionEvent is emitted after every finished recognition.
type RecognitionEvent struct {
	Outcome    faceapi.Outcome `json:"outcome"`
	Name       string          `json:"name,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Message    string          `json:"message,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

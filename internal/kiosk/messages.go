package kiosk

// Message IDs of the localizable status texts. The English and German texts live in
// web/locales.
const (
	MsgCameraUnavailable = "camera.unavailable"
	MsgCameraNotReady    = "camera.not_ready"

	MsgCaptureFull = "capture.full"

	MsgNameRequired     = "register.name_required"
	MsgNoImages         = "register.no_images"
	MsgRegistering      = "register.in_progress"
	MsgRegistered       = "register.success"
	MsgRegisterAPIError = "register.error"
	MsgRegisterFailed   = "register.failed"

	MsgRecognizing          = "recognize.in_progress"
	MsgMatchFound           = "recognize.match"
	MsgNoMatch              = "recognize.no_match"
	MsgServerMessage        = "recognize.server_message"
	MsgNoFace               = "recognize.no_face"
	MsgRecognizeError       = "recognize.error"
	MsgRecognizeUnexpected  = "recognize.error_unexpected"
	MsgRecognizeNetworkFail = "recognize.error_network"
)

// Severity drives the styling of a status line.
type Severity string

const (
	SeverityNeutral Severity = "neutral"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Status is a status line that is localized when the state is rendered.
type Status struct {
	MessageID string         `json:"message_id"`
	Data      map[string]any `json:"data,omitempty"`
	Severity  Severity       `json:"severity"`
	// Text is filled in per request with the localized message.
	Text string `json:"text,omitempty"`
}

// Localized returns a copy of s with Text set by translate. A nil status stays nil.
func (s *Status) Localized(translate func(id string, data map[string]any) string) *Status {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Text = translate(s.MessageID, s.Data)
	return &cp
}

func newStatus(id string, sev Severity, kv ...any) *Status {
	s := &Status{MessageID: id, Severity: sev}
	if len(kv) > 0 {
		s.Data = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if key, ok := kv[i].(string); ok {
				s.Data[key] = kv[i+1]
			}
		}
	}
	return s
}

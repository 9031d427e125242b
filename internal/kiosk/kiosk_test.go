package kiosk

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"faceid-kiosk/internal/camera"
	"faceid-kiosk/internal/capture"
	"faceid-kiosk/internal/integrations/faceapi"
)

type fakeAPI struct {
	mu sync.Mutex

	registerResp *faceapi.RegisterResponse
	registerErr  error
	registered   []faceapi.RegisterRequest

	recognizeResp *faceapi.RecognizeResponse
	recognizeErr  error
	recognizeHold chan struct{}
	recognized    [][]byte

	deleted []int
}

func (f *fakeAPI) Register(ctx context.Context, req faceapi.RegisterRequest) (*faceapi.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	if f.registerResp == nil {
		return &faceapi.RegisterResponse{Status: "success", PersonID: 1, Name: req.Name}, nil
	}
	return f.registerResp, nil
}

func (f *fakeAPI) Recognize(ctx context.Context, image []byte) (*faceapi.RecognizeResponse, error) {
	if f.recognizeHold != nil {
		<-f.recognizeHold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recognized = append(f.recognized, image)
	return f.recognizeResp, f.recognizeErr
}

func (f *fakeAPI) GetPerson(ctx context.Context, id int) (*faceapi.PersonDetails, error) {
	return &faceapi.PersonDetails{ID: id, Name: "Alice"}, nil
}

func (f *fakeAPI) DeletePerson(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type recordingPublisher struct {
	registrations chan RegistrationEvent
	recognitions  chan RecognitionEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{
		registrations: make(chan RegistrationEvent, 4),
		recognitions:  make(chan RecognitionEvent, 4),
	}
}

func (p *recordingPublisher) PublishRegistration(ev RegistrationEvent) error {
	p.registrations <- ev
	return nil
}

func (p *recordingPublisher) PublishRecognition(ev RecognitionEvent) error {
	p.recognitions <- ev
	return nil
}

type countingNotifier struct {
	mu       sync.Mutex
	versions []uint64
}

func (n *countingNotifier) NotifyStateChanged(v uint64) {
	n.mu.Lock()
	n.versions = append(n.versions, v)
	n.mu.Unlock()
}

type testKiosk struct {
	*Kiosk
	opener  *camera.FakeOpener
	manager *camera.Manager
	api     *fakeAPI
}

func newTestKiosk(t *testing.T, options ...Option) *testKiosk {
	t.Helper()
	opener := &camera.FakeOpener{}
	manager := camera.NewManager(opener.Open)
	api := &fakeAPI{}
	k := New(manager, api, capture.NewBuffer(20), Options{MinCaptures: 3}, options...)
	t.Cleanup(k.Close)
	return &testKiosk{Kiosk: k, opener: opener, manager: manager, api: api}
}

func (tk *testKiosk) startReady(t *testing.T, tab Tab) {
	t.Helper()
	if err := tk.StartCamera(context.Background(), tab); err != nil {
		t.Fatalf("StartCamera(%s) failed: %v", tab, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tk.manager.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
}

func (tk *testKiosk) captureN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := tk.Capture(); err != nil {
			t.Fatalf("Capture %d failed: %v", i, err)
		}
	}
}

func TestSwitchingTabsReleasesCamera(t *testing.T) {
	tk := newTestKiosk(t)

	tk.startReady(t, TabRegister)
	if err := tk.SwitchTab(TabRecognize); err != nil {
		t.Fatalf("SwitchTab failed: %v", err)
	}
	tk.startReady(t, TabRecognize)

	devices := tk.opener.Devices()
	if len(devices) != 2 {
		t.Fatalf("Expected 2 opened devices, got %d", len(devices))
	}
	if !devices[0].Closed() {
		t.Error("Expected register stream to be released")
	}

	state := tk.State()
	if state.Tab != TabRecognize || state.Camera.Surface != camera.SurfaceRecognize {
		t.Errorf("Unexpected state: tab=%s camera=%+v", state.Tab, state.Camera)
	}
	if !state.Controls.Recognize || state.Controls.Capture {
		t.Errorf("Expected only recognize enabled, got %+v", state.Controls)
	}
}

func TestSwitchTabClearsBuffer(t *testing.T) {
	tk := newTestKiosk(t)
	tk.startReady(t, TabRegister)
	tk.captureN(t, 2)

	if _, err := tk.Register(context.Background(), "", ""); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("Expected ErrNameRequired, got %v", err)
	}

	if err := tk.SwitchTab(TabRecognize); err != nil {
		t.Fatal(err)
	}
	state := tk.State()
	if state.RegisterStatus != nil {
		t.Errorf("Expected register status to be reset, got %+v", state.RegisterStatus)
	}
	if len(state.Captures) != 0 {
		t.Errorf("Expected empty buffer after tab switch, got %d", len(state.Captures))
	}
	if state.Camera.Active {
		t.Error("Expected camera to be stopped after tab switch")
	}
	if err := tk.SwitchTab("settings"); !errors.Is(err, ErrUnknownTab) {
		t.Errorf("Expected ErrUnknownTab, got %v", err)
	}
}

func TestCameraFailureShowsAlert(t *testing.T) {
	tk := newTestKiosk(t)
	tk.opener.Err = errors.New("permission denied")

	err := tk.StartCamera(context.Background(), TabRegister)
	if !errors.Is(err, camera.ErrCameraUnavailable) {
		t.Fatalf("Expected ErrCameraUnavailable, got %v", err)
	}
	state := tk.State()
	if state.Alert == nil || state.Alert.MessageID != MsgCameraUnavailable {
		t.Errorf("Expected camera alert, got %+v", state.Alert)
	}
	if state.Camera.Active || state.Controls.Capture {
		t.Errorf("Expected nothing bound, got %+v", state)
	}
}

func TestRegisterEnabledAtThreshold(t *testing.T) {
	tk := newTestKiosk(t)
	tk.startReady(t, TabRegister)

	for i := 1; i <= 3; i++ {
		tk.captureN(t, 1)
		want := i >= 3
		if got := tk.State().Controls.Register; got != want {
			t.Errorf("After %d captures: register enabled = %v, want %v", i, got, want)
		}
	}
	if err := tk.RemoveCapture(0); err != nil {
		t.Fatal(err)
	}
	if tk.State().Controls.Register {
		t.Error("Expected register to be disabled below the threshold")
	}
}

func TestRemoveCaptureKeepsOrder(t *testing.T) {
	tk := newTestKiosk(t)
	tk.startReady(t, TabRegister)
	tk.captureN(t, 3)

	before := tk.State().Captures
	if err := tk.RemoveCapture(1); err != nil {
		t.Fatal(err)
	}
	after := tk.State().Captures
	if len(after) != 2 || after[0].ID != before[0].ID || after[1].ID != before[2].ID {
		t.Errorf("Expected [%s %s], got %+v", before[0].ID, before[2].ID, after)
	}
	if err := tk.RemoveCapture(5); !errors.Is(err, capture.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestCaptureRequiresRegisterStream(t *testing.T) {
	tk := newTestKiosk(t)

	if _, err := tk.Capture(); !errors.Is(err, camera.ErrNotStreaming) {
		t.Errorf("Expected ErrNotStreaming without camera, got %v", err)
	}

	tk.startReady(t, TabRecognize)
	if _, err := tk.Capture(); !errors.Is(err, camera.ErrNotStreaming) {
		t.Errorf("Expected ErrNotStreaming on recognize stream, got %v", err)
	}
}

func TestRegisterSuccessClearsState(t *testing.T) {
	pub := newRecordingPublisher()
	tk := newTestKiosk(t, WithPublisher(pub))
	tk.api.registerResp = &faceapi.RegisterResponse{Status: "success", PersonID: 42, Name: "Alice"}
	tk.startReady(t, TabRegister)
	tk.captureN(t, 3)
	tk.UpdateForm("Alice", "alice@example.com")

	resp, err := tk.Register(context.Background(), " Alice ", "alice@example.com")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if resp.PersonID != 42 {
		t.Errorf("Expected person 42, got %d", resp.PersonID)
	}

	if len(tk.api.registered) != 1 {
		t.Fatalf("Expected one register call, got %d", len(tk.api.registered))
	}
	req := tk.api.registered[0]
	if req.Name != "Alice" || len(req.Images) != 3 {
		t.Errorf("Unexpected request: name=%q images=%d", req.Name, len(req.Images))
	}

	state := tk.State()
	if len(state.Captures) != 0 || state.Form != (Form{}) {
		t.Errorf("Expected cleared buffer and form, got captures=%d form=%+v", len(state.Captures), state.Form)
	}
	if state.RegisterStatus == nil || state.RegisterStatus.MessageID != MsgRegistered || state.RegisterStatus.Data["Name"] != "Alice" {
		t.Errorf("Unexpected status %+v", state.RegisterStatus)
	}
	if state.LastRegistered == nil || state.LastRegistered.ID != 42 {
		t.Errorf("Expected last registered person 42, got %+v", state.LastRegistered)
	}

	select {
	case ev := <-pub.registrations:
		if ev.Name != "Alice" || ev.Images != 3 || ev.PersonID != 42 {
			t.Errorf("Unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("Expected a registration event")
	}
}

func TestRegisterValidation(t *testing.T) {
	tk := newTestKiosk(t)

	if _, err := tk.Register(context.Background(), "   ", ""); !errors.Is(err, ErrNameRequired) {
		t.Errorf("Expected ErrNameRequired, got %v", err)
	}
	if got := tk.State().RegisterStatus.MessageID; got != MsgNameRequired {
		t.Errorf("Expected %s, got %s", MsgNameRequired, got)
	}

	if _, err := tk.Register(context.Background(), "Bob", ""); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}
	if got := tk.State().RegisterStatus.MessageID; got != MsgNoImages {
		t.Errorf("Expected %s, got %s", MsgNoImages, got)
	}
	if len(tk.api.registered) != 0 {
		t.Error("Expected no request for invalid input")
	}
}

func TestRegisterFailureKeepsState(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		detail  string
	}{
		{"api error", &faceapi.APIError{StatusCode: 400, Detail: "Person with name 'Alice' already exists"}, MsgRegisterAPIError, "Person with name 'Alice' already exists"},
		{"api error without detail", &faceapi.APIError{StatusCode: 500}, MsgRegisterAPIError, "Unknown error"},
		{"unparseable error body", &faceapi.APIError{StatusCode: 502, Malformed: true}, MsgRegisterFailed, ""},
		{"network", errors.New("connection refused"), MsgRegisterFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newTestKiosk(t)
			tk.api.registerErr = tt.err
			tk.startReady(t, TabRegister)
			tk.captureN(t, 3)

			if _, err := tk.Register(context.Background(), "Alice", ""); err == nil {
				t.Fatal("Expected error")
			}
			state := tk.State()
			if len(state.Captures) != 3 {
				t.Errorf("Expected buffer to be kept, got %d", len(state.Captures))
			}
			if state.Form.Name != "Alice" {
				t.Errorf("Expected form to be kept, got %+v", state.Form)
			}
			if state.RegisterStatus.MessageID != tt.message {
				t.Errorf("Expected %s, got %s", tt.message, state.RegisterStatus.MessageID)
			}
			if tt.detail != "" && state.RegisterStatus.Data["Message"] != tt.detail {
				t.Errorf("Expected detail %q, got %v", tt.detail, state.RegisterStatus.Data)
			}
			if state.RegisterStatus.Severity != SeverityDanger {
				t.Errorf("Expected danger, got %s", state.RegisterStatus.Severity)
			}
		})
	}
}

func TestRecognizeRendering(t *testing.T) {
	yes := true
	tests := []struct {
		name     string
		resp     *faceapi.RecognizeResponse
		err      error
		message  string
		severity Severity
		person   *PersonView
	}{
		{
			name:     "match",
			resp:     &faceapi.RecognizeResponse{Status: "success", Recognized: &yes, Person: &faceapi.Person{Name: "Alice", Confidence: 0.8734}},
			message:  MsgMatchFound,
			severity: SeveritySuccess,
			person:   &PersonView{Name: "Alice", Email: "N/A", Confidence: "87.34%"},
		},
		{
			name:     "no match",
			resp:     &faceapi.RecognizeResponse{Status: "success"},
			message:  MsgNoMatch,
			severity: SeverityInfo,
		},
		{
			name:     "no match with server message",
			resp:     &faceapi.RecognizeResponse{Status: "success", Message: "No matching face found in the database"},
			message:  MsgServerMessage,
			severity: SeverityInfo,
		},
		{
			name:     "unknown face status",
			resp:     &faceapi.RecognizeResponse{Status: "unknown_face", Message: "Face not recognized"},
			message:  MsgRecognizeError,
			severity: SeverityDanger,
		},
		{
			name:     "no face",
			resp:     &faceapi.RecognizeResponse{Status: "no_face"},
			message:  MsgNoFace,
			severity: SeverityWarning,
		},
		{
			name:     "other status without message",
			resp:     &faceapi.RecognizeResponse{Status: "weird"},
			message:  MsgRecognizeUnexpected,
			severity: SeverityDanger,
		},
		{
			name:     "api error",
			err:      &faceapi.APIError{StatusCode: 500, Detail: "model not loaded"},
			message:  MsgRecognizeError,
			severity: SeverityDanger,
		},
		{
			name:     "network error",
			err:      &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			message:  MsgRecognizeNetworkFail,
			severity: SeverityDanger,
		},
		{
			name:     "invalid response",
			err:      faceapi.ErrInvalidResponse,
			message:  MsgRecognizeUnexpected,
			severity: SeverityDanger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newTestKiosk(t)
			tk.api.recognizeResp = tt.resp
			tk.api.recognizeErr = tt.err
			tk.startReady(t, TabRecognize)

			if _, err := tk.Recognize(context.Background()); err != nil {
				t.Fatalf("Recognize failed: %v", err)
			}

			view := tk.State().Recognition
			if view.Status == nil || view.Status.MessageID != tt.message {
				t.Fatalf("Expected %s, got %+v", tt.message, view.Status)
			}
			if view.Status.Severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, view.Status.Severity)
			}
			if tt.person == nil {
				if view.PersonVisible || view.Person != nil {
					t.Errorf("Expected hidden person panel, got %+v", view.Person)
				}
				return
			}
			if !view.PersonVisible || view.Person == nil || *view.Person != *tt.person {
				t.Errorf("Expected person %+v, got %+v", tt.person, view.Person)
			}
		})
	}
}

func TestRecognizeSendsJPEG(t *testing.T) {
	tk := newTestKiosk(t)
	tk.api.recognizeResp = &faceapi.RecognizeResponse{Status: "no_face"}
	tk.startReady(t, TabRecognize)

	if _, err := tk.Recognize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(tk.api.recognized) != 1 {
		t.Fatalf("Expected one recognize call, got %d", len(tk.api.recognized))
	}
	img := tk.api.recognized[0]
	if len(img) < 2 || img[0] != 0xFF || img[1] != 0xD8 {
		t.Error("Expected a JPEG payload")
	}
}

func TestRecognizeRejectsConcurrentRequest(t *testing.T) {
	tk := newTestKiosk(t)
	tk.api.recognizeHold = make(chan struct{})
	tk.api.recognizeResp = &faceapi.RecognizeResponse{Status: "no_face"}
	tk.startReady(t, TabRecognize)

	done := make(chan error, 1)
	go func() {
		_, err := tk.Recognize(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		st := tk.State()
		if st.Recognizing && st.Recognition.Status != nil && st.Recognition.Status.MessageID == MsgRecognizing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first recognition never started")
		}
		time.Sleep(time.Millisecond)
	}

	state := tk.State()
	if state.Controls.Recognize {
		t.Error("Expected recognize button disabled while in flight")
	}
	if state.Recognition.Status == nil || state.Recognition.Status.MessageID != MsgRecognizing {
		t.Errorf("Expected in-progress status, got %+v", state.Recognition.Status)
	}

	if _, err := tk.Recognize(context.Background()); !errors.Is(err, ErrRecognitionInProgress) {
		t.Errorf("Expected ErrRecognitionInProgress, got %v", err)
	}

	close(tk.api.recognizeHold)
	if err := <-done; err != nil {
		t.Fatalf("first recognition failed: %v", err)
	}
	if got := tk.State().Recognition.Status.MessageID; got != MsgNoFace {
		t.Errorf("Expected first result to be shown, got %s", got)
	}
}

func TestRecognizeWithoutCamera(t *testing.T) {
	tk := newTestKiosk(t)

	result, err := tk.Recognize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != faceapi.OutcomeError {
		t.Errorf("Expected error outcome, got %s", result.Outcome)
	}
	if len(tk.api.recognized) != 0 {
		t.Error("Expected no request without a frame")
	}
}

func TestNotifierSeesIncreasingVersions(t *testing.T) {
	n := &countingNotifier{}
	tk := newTestKiosk(t, WithNotifier(n))

	tk.UpdateForm("A", "")
	tk.UpdateForm("B", "")

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.versions) != 2 || n.versions[0] >= n.versions[1] {
		t.Errorf("Expected two increasing versions, got %v", n.versions)
	}
	if tk.State().Version != n.versions[1] {
		t.Errorf("Expected state version %d, got %d", n.versions[1], tk.State().Version)
	}
}

func TestDeletePersonClearsLastRegistered(t *testing.T) {
	tk := newTestKiosk(t)
	tk.api.registerResp = &faceapi.RegisterResponse{PersonID: 9}
	tk.startReady(t, TabRegister)
	tk.captureN(t, 1)

	if _, err := tk.Register(context.Background(), "Dana", ""); err != nil {
		t.Fatal(err)
	}
	if err := tk.DeletePerson(context.Background(), 9); err != nil {
		t.Fatal(err)
	}
	if tk.State().LastRegistered != nil {
		t.Error("Expected last registered person to be cleared")
	}
	if len(tk.api.deleted) != 1 || tk.api.deleted[0] != 9 {
		t.Errorf("Unexpected delete calls %v", tk.api.deleted)
	}
}

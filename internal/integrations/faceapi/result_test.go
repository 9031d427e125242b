package faceapi

import (
	"errors"
	"fmt"
	"testing"
)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestInterpret(t *testing.T) {
	tests := []struct {
		name    string
		resp    *RecognizeResponse
		outcome Outcome
		person  string
		message string
	}{
		{
			name:    "match",
			resp:    &RecognizeResponse{Status: "success", Recognized: boolPtr(true), Person: &Person{Name: "Alice", Confidence: 0.8734}},
			outcome: OutcomeMatched,
			person:  "Alice",
		},
		{
			name:    "match without recognized flag",
			resp:    &RecognizeResponse{Status: "success", Person: &Person{Name: "Bob"}, Confidence: floatPtr(0.7)},
			outcome: OutcomeMatched,
			person:  "Bob",
		},
		{
			name:    "success without match",
			resp:    &RecognizeResponse{Status: "success", Recognized: boolPtr(false), Message: "No matching face found in the database"},
			outcome: OutcomeNotMatched,
			message: "No matching face found in the database",
		},
		{
			name:    "recognized but no person",
			resp:    &RecognizeResponse{Status: "success", Recognized: boolPtr(true)},
			outcome: OutcomeNotMatched,
		},
		{
			name:    "unknown face is an error",
			resp:    &RecognizeResponse{Status: "unknown_face", Message: "Face not recognized"},
			outcome: OutcomeError,
			message: "Face not recognized",
		},
		{
			name:    "no face",
			resp:    &RecognizeResponse{Status: "no_face"},
			outcome: OutcomeNoFace,
		},
		{
			name:    "other status",
			resp:    &RecognizeResponse{Status: "no_known_faces", Message: "No known faces in the database"},
			outcome: OutcomeError,
			message: "No known faces in the database",
		},
		{
			name:    "nil",
			outcome: OutcomeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Interpret(tt.resp)
			if got.Outcome != tt.outcome {
				t.Errorf("Expected outcome %s, got %s", tt.outcome, got.Outcome)
			}
			if tt.person != "" && (got.Person == nil || got.Person.Name != tt.person) {
				t.Errorf("Expected person %s, got %+v", tt.person, got.Person)
			}
			if tt.person == "" && got.Person != nil {
				t.Errorf("Expected no person, got %+v", got.Person)
			}
			if got.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, got.Message)
			}
		})
	}
}

func TestInterpretFallsBackToTopLevelConfidence(t *testing.T) {
	got := Interpret(&RecognizeResponse{Status: "success", Person: &Person{Name: "Bob"}, Confidence: floatPtr(0.7)})
	if got.Person.Confidence != 0.7 {
		t.Errorf("Expected confidence 0.7, got %v", got.Person.Confidence)
	}
}

func TestResultFromError(t *testing.T) {
	apiErr := &APIError{StatusCode: 500, Detail: "model not loaded"}
	if got := ResultFromError(fmt.Errorf("wrapped: %w", apiErr)); got.Message != "model not loaded" || got.Outcome != OutcomeError {
		t.Errorf("Unexpected result %+v", got)
	}
	if got := ResultFromError(errors.New("connection refused")); got.Message != "connection refused" {
		t.Errorf("Unexpected result %+v", got)
	}
}

func TestConfidencePercent(t *testing.T) {
	tests := map[float64]string{
		0.8734: "87.34%",
		1:      "100.00%",
		0:      "0.00%",
		0.5:    "50.00%",
	}
	for in, want := range tests {
		if got := ConfidencePercent(in); got != want {
			t.Errorf("ConfidencePercent(%v) = %q, want %q", in, got, want)
		}
	}
}

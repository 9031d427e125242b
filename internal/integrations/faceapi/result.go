package faceapi

import (
	"errors"
	"fmt"
)

// Outcome is the interpreted result of one recognize call.
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeNotMatched Outcome = "not_matched"
	OutcomeNoFace     Outcome = "no_face"
	OutcomeError      Outcome = "error"
)

// Response status values sent by the recognition service.
const (
	StatusSuccess = "success"
	StatusNoFace  = "no_face"
)

// Result is a Recognition Result. It is request scoped and never stored.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Person  *Person `json:"person,omitempty"`
	// Message is the server-provided text, empty when the server sent none.
	Message string `json:"message,omitempty"`
}

// Interpret maps a 2xx recognize response onto one of the four outcomes. Any
// status other than success or no_face, unknown_face included, is an error.
//
// A success response without the recognized flag but with a person counts as a
// match; only an explicit recognized=false turns it into a miss.
func Interpret(resp *RecognizeResponse) Result {
	if resp == nil {
		return Result{Outcome: OutcomeError}
	}

	switch resp.Status {
	case StatusSuccess:
		if resp.Person != nil && (resp.Recognized == nil || *resp.Recognized) {
			person := *resp.Person
			if person.Confidence == 0 && resp.Confidence != nil {
				person.Confidence = *resp.Confidence
			}
			return Result{Outcome: OutcomeMatched, Person: &person, Message: resp.Message}
		}
		return Result{Outcome: OutcomeNotMatched, Message: resp.Message}
	case StatusNoFace:
		return Result{Outcome: OutcomeNoFace, Message: resp.Message}
	default:
		return Result{Outcome: OutcomeError, Message: resp.Message}
	}
}

// ResultFromError turns a failed call into an error outcome carrying the most
// useful message available.
func ResultFromError(err error) Result {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return Result{Outcome: OutcomeError, Message: apiErr.UserMessage()}
	}
	if err == nil {
		return Result{Outcome: OutcomeError}
	}
	return Result{Outcome: OutcomeError, Message: err.Error()}
}

// ConfidencePercent renders a [0,1] confidence as a percentage with two decimals.
func ConfidencePercent(confidence float64) string {
	return fmt.Sprintf("%.2f%%", confidence*100)
}

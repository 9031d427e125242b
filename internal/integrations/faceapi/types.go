package faceapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidRequest is returned before any I/O when the request is incomplete.
	ErrInvalidRequest = errors.New("invalid face API request")
	// ErrInvalidResponse is returned when a 2xx body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid face API response")
)

// Person is the identity block of a recognize response.
type Person struct {
	ID         int     `json:"id,omitempty"`
	Name       string  `json:"name"`
	Email      string  `json:"email,omitempty"`
	Confidence float64 `json:"confidence"`
}

// RecognizeResponse is the raw JSON body of POST /recognize.
type RecognizeResponse struct {
	Status string `json:"status"`
	// Recognized is a pointer because the service omits it on a successful match.
	Recognized *bool    `json:"recognized,omitempty"`
	Person     *Person  `json:"person,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// RegisterRequest carries everything needed for POST /register.
type RegisterRequest struct {
	Name   string
	Email  string
	Images [][]byte
}

// RegisterResponse is the JSON body of a successful POST /register. The service
// may answer with any shape, so unknown fields stay in Raw.
type RegisterResponse struct {
	Status   string         `json:"status"`
	PersonID int            `json:"person_id"`
	Name     string         `json:"name"`
	Raw      map[string]any `json:"-"`
}

// PersonDetails is the body of GET /person/{id}.
type PersonDetails struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	FaceCount int       `json:"face_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceInfo is the body of GET / on the recognition service.
type ServiceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Docs    string `json:"docs,omitempty"`
}

// APIError is a non-2xx answer from the recognition service.
type APIError struct {
	StatusCode int
	Detail     string
	Message    string
	// Malformed is set when the error body was not JSON.
	Malformed bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("face API returned error (status %d): %s", e.StatusCode, e.UserMessage())
}

// UserMessage is the text shown to the user: detail, then message, then a generic fallback.
func (e *APIError) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Message != "" {
		return e.Message
	}
	return "Unknown error"
}

// errorBody covers both {"detail": "..."} and the validation form
// {"detail": [{"msg": "..."}, ...]}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		apiErr.Malformed = true
		return apiErr
	}
	apiErr.Message = eb.Message

	if len(eb.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(eb.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(eb.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		apiErr.Detail = strings.Join(msgs, "; ")
	}
	return apiErr
}

package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"faceid-kiosk/config"

	log "github.com/sirupsen/logrus"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

var logFields = log.Fields{
	"component": "faceapi",
}

// Client talks to the remote face registration/recognition service.
type Client struct {
	config     config.FaceAPIConfig
	httpClient *http.Client
}

// NewClient creates a new face API client.
func NewClient(cfg config.FaceAPIConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) endpoint(elem ...string) (string, error) {
	parts := append([]string{c.config.APIPrefix}, elem...)
	apiURL, err := url.JoinPath(c.config.URL, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to create API URL: %w", err)
	}
	return apiURL, nil
}

// Info fetches the service banner from the root endpoint. Used as a health check.
func (c *Client) Info(ctx context.Context) (*ServiceInfo, error) {
	apiURL, err := url.JoinPath(c.config.URL, "/")
	if err != nil {
		return nil, fmt.Errorf("failed to create API URL: %w", err)
	}

	var info ServiceInfo
	if err := c.doJSON(ctx, http.MethodGet, apiURL, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Register uploads a person with all of their face images in one multipart request.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", ErrInvalidRequest)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("failed to write name field: %w", err)
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		if err := writer.WriteField("email", email); err != nil {
			return nil, fmt.Errorf("failed to write email field: %w", err)
		}
	}
	for i, img := range req.Images {
		if err := writeJPEGPart(writer, "images", fmt.Sprintf("face_%d.jpg", i), img); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	apiURL, err := c.endpoint("register")
	if err != nil {
		return nil, err
	}

	log.WithFields(logFields).WithFields(log.Fields{
		"name":   name,
		"images": len(req.Images),
		"bytes":  body.Len(),
	}).Info("Registering person")

	respBody, err := c.postMultipart(ctx, apiURL, writer.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}

	result := &RegisterResponse{}
	// Any 2xx counts as success, even if the body has an unexpected shape.
	if err := json.Unmarshal(respBody, result); err != nil {
		log.WithFields(logFields).Warnf("Register response is not the expected JSON: %v", err)
	}
	raw := map[string]any{}
	if err := json.Unmarshal(respBody, &raw); err == nil {
		result.Raw = raw
	}
	return result, nil
}

// Recognize uploads a single JPEG frame and returns the raw response. Non-2xx
// answers come back as *APIError.
func (c *Client) Recognize(ctx context.Context, image []byte) (*RecognizeResponse, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidRequest)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writeJPEGPart(writer, "image", "face.jpg", image); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	apiURL, err := c.endpoint("recognize")
	if err != nil {
		return nil, err
	}

	log.WithFields(logFields).WithField("size", len(image)).Debug("Sending image for recognition")

	start := time.Now()
	respBody, err := c.postMultipart(ctx, apiURL, writer.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}
	log.WithFields(logFields).Debugf("Recognition request took %s", time.Since(start))

	var result RecognizeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

// GetPerson fetches a registered person by ID.
func (c *Client) GetPerson(ctx context.Context, id int) (*PersonDetails, error) {
	apiURL, err := c.endpoint("person", strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	var person PersonDetails
	if err := c.doJSON(ctx, http.MethodGet, apiURL, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// DeletePerson removes a registered person and their face encodings.
func (c *Client) DeletePerson(ctx context.Context, id int) error {
	apiURL, err := c.endpoint("person", strconv.Itoa(id))
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, apiURL, nil)
}

func writeJPEGPart(writer *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write image data: %w", err)
	}
	return nil
}

func (c *Client) postMultipart(ctx context.Context, apiURL, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) doJSON(ctx context.Context, method, apiURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// do sends the request and returns the body of a 2xx response, or an *APIError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		log.WithFields(logFields).WithFields(log.Fields{
			"status": resp.StatusCode,
			"url":    req.URL.Path,
		}).Warnf("Face API error: %s", apiErr.UserMessage())
		return nil, apiErr
	}
	return respBody, nil
}

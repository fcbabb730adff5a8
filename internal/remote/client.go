// Package remote is the HTTP client for the remote entity service, the
// authority for entity ids and versions. It only consumes the service
// contract; nothing here implements server behavior.
package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// DefaultTimeout bounds each remote call; an expired call is a retryable
// failure, never a conflict.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for the remote entity service.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a client with the default timeout.
func New(baseURL, apiKey, deviceID string) *Client {
	return NewWithTimeout(baseURL, apiKey, deviceID, DefaultTimeout)
}

// NewWithTimeout creates a client with an explicit per-call timeout.
func NewWithTimeout(baseURL, apiKey, deviceID string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// EntityResponse is the server's view of an entity after a write.
type EntityResponse struct {
	ID      string          `json:"id"`
	Version int64           `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// AttachmentResponse is returned from an attachment upload.
type AttachmentResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionMismatchError is the decoded 409 rejection: the expectedVersion
// the client submitted no longer matches the server's current version.
// ServerPayload carries the server's current snapshot for conflict
// detection.
type VersionMismatchError struct {
	ServerVersion int64           `json:"server_version"`
	ServerPayload json.RawMessage `json:"server_payload"`
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: server at v%d", e.ServerVersion)
}

// createRequest carries the client-generated stable id so a replayed
// create is a no-op on the server rather than a duplicate.
type createRequest struct {
	ClientID string          `json:"client_id"`
	Payload  json.RawMessage `json:"payload"`
}

type updateRequest struct {
	Payload         json.RawMessage `json:"payload"`
	ExpectedVersion int64           `json:"expected_version"`
}

type deleteRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// HealthCheck verifies server reachability.
func (c *Client) HealthCheck() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do("GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateEntity creates an entity. clientID is the locally generated stable
// id; the server echoes its authoritative id and initial version.
func (c *Client) CreateEntity(kind models.EntityKind, clientID string, payload json.RawMessage) (*EntityResponse, error) {
	var resp EntityResponse
	body := createRequest{ClientID: clientID, Payload: payload}
	if err := c.do("POST", fmt.Sprintf("/entities/%s", kind), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateEntity updates an entity, submitting the last-known version. A 409
// response is returned as *VersionMismatchError.
func (c *Client) UpdateEntity(kind models.EntityKind, id string, payload json.RawMessage, expectedVersion int64) (*EntityResponse, error) {
	var resp EntityResponse
	body := updateRequest{Payload: payload, ExpectedVersion: expectedVersion}
	if err := c.do("PUT", fmt.Sprintf("/entities/%s/%s", kind, id), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteEntity deletes an entity under the same version precondition as
// update.
func (c *Client) DeleteEntity(kind models.EntityKind, id string, expectedVersion int64) error {
	body := deleteRequest{ExpectedVersion: expectedVersion}
	return c.do("DELETE", fmt.Sprintf("/entities/%s/%s", kind, id), body, nil)
}

// UploadAttachment sends a blob as a multipart POST with its owner entity
// id and mime type.
func (c *Client) UploadAttachment(entityID, filename, mimeType string, data []byte) (*AttachmentResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("entity_id", entityID); err != nil {
		return nil, fmt.Errorf("write entity_id field: %w", err)
	}
	if err := w.WriteField("mime_type", mimeType); err != nil {
		return nil, fmt.Errorf("write mime_type field: %w", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequest("POST", c.BaseURL+"/attachments", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setAuth(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, c.classifyError(resp.StatusCode, respBody)
	}

	var out AttachmentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &out, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (c *Client) setAuth(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}
}

func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.classifyError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// classifyError maps error responses to sentinel or typed errors. A 409 is
// decoded into VersionMismatchError so the sync manager can route it to
// conflict resolution instead of retrying.
func (c *Client) classifyError(status int, body []byte) error {
	if status == http.StatusConflict {
		var mismatch VersionMismatchError
		if json.Unmarshal(body, &mismatch) == nil && mismatch.ServerVersion > 0 {
			return &mismatch
		}
		return fmt.Errorf("HTTP 409: %s", string(body))
	}

	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		switch status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		default:
			return &apiErr
		}
	}
	return fmt.Errorf("HTTP %d: %s", status, string(body))
}

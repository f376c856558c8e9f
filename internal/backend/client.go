// Package backend talks to the SMS fan-out server.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnreachable wraps transport failures and undecodable responses. Only
// this class of error triggers the local fallback; a decoded response that
// reports failure does not.
var ErrUnreachable = errors.New("notification backend unreachable")

const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

// Contact is a recipient as the backend expects it.
type Contact struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

// EmergencyRequest is the body of POST /api/send-emergency-sms.
type EmergencyRequest struct {
	RiderName   string    `json:"riderName"`
	RiderPhone  string    `json:"riderPhone"`
	BloodGroup  string    `json:"bloodGroup"`
	Vehicle     string    `json:"vehicle"`
	CrashGforce string    `json:"crashGforce"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Contacts    []Contact `json:"contacts"`
}

// ShareLocationRequest is the body of POST /api/share-location.
type ShareLocationRequest struct {
	RiderName string    `json:"riderName"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Contacts  []Contact `json:"contacts"`
}

// ContactResult is the per-contact delivery outcome.
type ContactResult struct {
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Status  string `json:"status"`
	SID     string `json:"sid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the fan-out result.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Results []ContactResult `json:"results"`

	// StatusCode is the HTTP status of the reply.
	StatusCode int `json:"-"`
}

// Sent returns the results with status sent.
func (r Response) Sent() []ContactResult { return r.filter(ResultSent) }

// Failed returns the results with status failed.
func (r Response) Failed() []ContactResult { return r.filter(ResultFailed) }

func (r Response) filter(status string) []ContactResult {
	var out []ContactResult
	for _, res := range r.Results {
		if res.Status == status {
			out = append(out, res)
		}
	}
	return out
}

// Health is the reply of the health probe.
type Health struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Twilio    string `json:"twilio"`
	Timestamp string `json:"timestamp"`
}

// Running reports whether the server answered as running.
func (h Health) Running() bool { return h.Status == "running" }

// SMSConnected reports whether the server has a working SMS provider.
func (h Health) SMSConnected() bool { return h.Twilio == "connected" }

// Client calls the backend.
type Client struct {
	baseURL       string
	http          *http.Client
	healthTimeout time.Duration
}

// NewClient creates a client. timeout bounds each delivery request and
// healthTimeout the probe.
func NewClient(baseURL string, timeout, healthTimeout time.Duration) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: timeout},
		healthTimeout: healthTimeout,
	}
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

// SendEmergencySMS asks the backend to text every contact.
func (c *Client) SendEmergencySMS(ctx context.Context, req EmergencyRequest) (*Response, error) {
	return c.post(ctx, "/api/send-emergency-sms", req)
}

// ShareLocation sends the rider's position to every contact.
func (c *Client) ShareLocation(ctx context.Context, req ShareLocationRequest) (*Response, error) {
	return c.post(ctx, "/api/share-location", req)
}

// Health probes GET /.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: decode health reply: %v", ErrUnreachable, err)
	}
	return &h, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode reply (status %d): %v", ErrUnreachable, resp.StatusCode, err)
	}
	out.StatusCode = resp.StatusCode
	if resp.StatusCode >= http.StatusBadRequest {
		// error replies carry {"detail": ...} and never report success
		out.Success = false
	}
	return &out, nil
}

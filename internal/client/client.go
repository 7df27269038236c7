package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ad/go-onboarding-journey/internal/models"
	"github.com/google/uuid"
)

const DefaultBaseURL = "http://localhost:8000/api"

// Client talks to the onboarding backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is returned for non-2xx responses and for envelopes with success=false.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("onboarding api status %d", e.StatusCode)
	}
	return fmt.Sprintf("onboarding api status %d: %s", e.StatusCode, e.Detail)
}

type ProgressResponse struct {
	Success  bool                   `json:"success"`
	Steps    []models.StepPayload   `json:"steps"`
	Progress models.ProgressSummary `json:"progress"`
	Detail   string                 `json:"detail,omitempty"`
}

type CompleteStepRequest struct {
	StepID    int    `json:"step_id"`
	StudentID string `json:"student_id,omitempty"`
}

type CompleteStepResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message,omitempty"`
	XPAwarded int                 `json:"xp_awarded"`
	NextStep  *models.StepPayload `json:"next_step"`
	Detail    string              `json:"detail,omitempty"`
}

func (c *Client) GetProgress(ctx context.Context, studentID string) (*ProgressResponse, error) {
	endpoint := c.baseURL + "/onboarding/student/" + url.PathEscape(studentID)

	var body ProgressResponse
	status, err := c.do(ctx, http.MethodGet, endpoint, nil, &body)
	if err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, &APIError{StatusCode: status, Detail: body.Detail}
	}
	return &body, nil
}

// CompleteStep marks stepID done. An empty studentID lets the backend fall
// back to its default student.
func (c *Client) CompleteStep(ctx context.Context, studentID string, stepID int) (*CompleteStepResponse, error) {
	endpoint := c.baseURL + "/onboarding/step/complete"

	var body CompleteStepResponse
	status, err := c.do(ctx, http.MethodPost, endpoint, CompleteStepRequest{StepID: stepID, StudentID: studentID}, &body)
	if err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, &APIError{StatusCode: status, Detail: body.Detail}
	}
	return &body, nil
}

// FetchSteps and SubmitCompletion adapt the client to journey.API.
func (c *Client) FetchSteps(ctx context.Context, studentID string) ([]models.StepPayload, error) {
	resp, err := c.GetProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return resp.Steps, nil
}

func (c *Client) SubmitCompletion(ctx context.Context, studentID string, stepID int) (int, error) {
	resp, err := c.CompleteStep(ctx, studentID, stepID)
	if err != nil {
		return 0, err
	}
	return resp.XPAwarded, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) (int, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope)
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Detail: envelope.Detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return resp.StatusCode, nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mealweek/api/internal/config"
)

// Notifier defines the fire-and-forget notification surface. A plan is
// usable without its email, so callers log and swallow failures.
type Notifier interface {
	SendPlanReady(ctx context.Context, req *PlanReadyRequest) error
	HealthCheck(ctx context.Context) error
}

// MailerClient implements Notifier against the email microservice
type MailerClient struct {
	httpClient *http.Client
	baseURL    string
}

// PlanReadyRequest is the plan-ready notification payload
type PlanReadyRequest struct {
	UserID    string `json:"user_id"`
	PlanID    string `json:"plan_id"`
	PlanTitle string `json:"plan_title,omitempty"`
	WeekStart string `json:"week_start"`
}

// NewMailerClient creates a new mailer client
func NewMailerClient(cfg *config.MailerConfig) *MailerClient {
	return &MailerClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// SendPlanReady notifies the user their weekly plan is ready
func (c *MailerClient) SendPlanReady(ctx context.Context, req *PlanReadyRequest) error {
	return c.post(ctx, "/notifications/plan-ready", req)
}

// HealthCheck checks if the mailer service is available
func (c *MailerClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailer service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// post sends a POST request with JSON body
func (c *MailerClient) post(ctx context.Context, endpoint string, body interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mailer service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *MailerClient) IsConfigured() bool {
	return c.baseURL != ""
}

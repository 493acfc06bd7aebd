// Package calendar publishes chore instances to an external family
// calendar service. The integration is optional: with no URL configured
// every call is a no-op.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"chorebank/internal/model"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a calendar client. An empty baseURL disables the
// integration.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether a calendar service is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type eventRequest struct {
	Title     string `json:"title"`
	ChildName string `json:"child_name"`
	Date      string `json:"date"`
	TimeOfDay string `json:"time_of_day"`
}

type eventResponse struct {
	ID string `json:"id"`
}

// PublishInstance creates a calendar event for a generated instance and
// returns the remote event id. Transient failures (network errors and
// 5xx responses) are retried with fibonacci backoff before giving up.
func (c *Client) PublishInstance(ctx context.Context, in *model.ChoreInstance, title, childName string, timeOfDay model.TimeOfDay) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	body, err := json.Marshal(eventRequest{
		Title:     title,
		ChildName: childName,
		Date:      in.Date.Format("2006-01-02"),
		TimeOfDay: string(timeOfDay),
	})
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	var eventID string
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/events", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("calendar service returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			return fmt.Errorf("calendar service returned %d", resp.StatusCode)
		}

		var er eventResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		eventID = er.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("publish event: %w", err)
	}
	return eventID, nil
}

// DeleteEvent removes a previously published event. Missing events are
// not an error.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if !c.Enabled() || eventID == "" {
		return nil
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/events/"+eventID, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("calendar service returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
			return fmt.Errorf("calendar service returned %d", resp.StatusCode)
		}
		return nil
	})
}

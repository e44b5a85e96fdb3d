package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const (
	BookingToolName = "create_booking_link"

	calendlySchedulingURL = "https://api.calendly.com/scheduling_links"
)

// BookingTool returns a one-time scheduling link for the pre-configured
// Calendly event type.
type BookingTool struct {
	apiKey      string
	eventTypeID string
	client      *http.Client
}

func NewBookingTool(apiKey, eventTypeID string) *BookingTool {
	return &BookingTool{
		apiKey:      apiKey,
		eventTypeID: eventTypeID,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *BookingTool) Name() string { return BookingToolName }

func (t *BookingTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        BookingToolName,
			Description: "Create a scheduling link for a support call. Takes no arguments.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

func (t *BookingTool) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if t.apiKey == "" || t.eventTypeID == "" {
		return nil, fmt.Errorf("scheduling provider is not configured")
	}

	payload := map[string]interface{}{
		"max_event_count": 1,
		"owner":           "https://api.calendly.com/event_types/" + t.eventTypeID,
		"owner_type":      "EventType",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, calendlySchedulingURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("scheduling API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Resource struct {
			BookingURL string `json:"booking_url"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal booking response: %w", err)
	}
	if parsed.Resource.BookingURL == "" {
		return nil, fmt.Errorf("scheduling API returned no booking URL")
	}

	return fmt.Sprintf("Here is your booking link: %s", parsed.Resource.BookingURL), nil
}

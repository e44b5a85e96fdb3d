package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const (
	TicketToolName = "create_ticket"

	notionPagesURL = "https://api.notion.com/v1/pages"
	notionVersion  = "2022-06-28"
)

var (
	ticketPriorities = []string{"High", "Medium", "Low"}
	ticketStatuses   = []string{"Open", "Closed", "In Progress"}
	ticketTags       = []string{"AI-Studio-Requests", "Other"}
)

// TicketTool appends a row to a fixed-schema Notion support-tickets database.
type TicketTool struct {
	apiKey     string
	databaseID string
	client     *http.Client
}

func NewTicketTool(apiKey, databaseID string) *TicketTool {
	return &TicketTool{
		apiKey:     apiKey,
		databaseID: databaseID,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *TicketTool) Name() string { return TicketToolName }

func (t *TicketTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        TicketToolName,
			Description: "Create a support ticket in the ticketing database. Dates must be ISO-8601 (YYYY-MM-DD or full timestamp).",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Short ticket title.",
					},
					"description": map[string]interface{}{
						"type":        "string",
						"description": "Full problem description.",
					},
					"priority": map[string]interface{}{
						"type": "string",
						"enum": ticketPriorities,
					},
					"status": map[string]interface{}{
						"type": "string",
						"enum": ticketStatuses,
					},
					"assignee": map[string]interface{}{
						"type": "string",
					},
					"due_date": map[string]interface{}{
						"type":        "string",
						"description": "ISO-8601 due date.",
					},
					"tags": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"name", "description", "priority"},
			},
		},
	}
}

func (t *TicketTool) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	name, _ := args["name"].(string)
	description, _ := args["description"].(string)
	priority, _ := args["priority"].(string)

	var missing []string
	if strings.TrimSpace(name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(priority) == "" {
		missing = append(missing, "priority")
	}
	if len(missing) > 0 {
		return nil, &ArgumentError{Tool: TicketToolName, Reason: "missing required arguments: " + strings.Join(missing, ", ")}
	}

	status, _ := args["status"].(string)
	if status == "" {
		status = "Open"
	}

	properties := map[string]interface{}{
		"Name": map[string]interface{}{
			"title": []map[string]interface{}{{"text": map[string]string{"content": name}}},
		},
		"Description": map[string]interface{}{
			"rich_text": []map[string]interface{}{{"text": map[string]string{"content": description}}},
		},
		"Created time": map[string]interface{}{
			"date": map[string]string{"start": time.Now().Format(time.RFC3339)},
		},
	}
	if contains(ticketPriorities, priority) {
		properties["Priority"] = map[string]interface{}{"select": map[string]string{"name": priority}}
	}
	if contains(ticketStatuses, status) {
		properties["Status"] = map[string]interface{}{"select": map[string]string{"name": status}}
	}
	if assignee, _ := args["assignee"].(string); assignee != "" {
		properties["Assignee"] = map[string]interface{}{"select": map[string]string{"name": assignee}}
	}
	if dueDate, _ := args["due_date"].(string); dueDate != "" {
		properties["Due Date"] = map[string]interface{}{"date": map[string]string{"start": dueDate}}
	}
	if tags := acceptedTags(args["tags"]); len(tags) > 0 {
		options := make([]map[string]string, 0, len(tags))
		for _, tag := range tags {
			options = append(options, map[string]string{"name": tag})
		}
		properties["Tags"] = map[string]interface{}{"multi_select": options}
	}

	pageID, err := t.createPage(ctx, properties)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Ticket created (page id: %s)", pageID), nil
}

func (t *TicketTool) createPage(ctx context.Context, properties map[string]interface{}) (string, error) {
	if t.apiKey == "" || t.databaseID == "" {
		return "", fmt.Errorf("ticketing provider is not configured")
	}

	payload := map[string]interface{}{
		"parent":     map[string]string{"database_id": t.databaseID},
		"properties": properties,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticket payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notionPagesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticketing API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal ticket response: %w", err)
	}
	return parsed.ID, nil
}

func acceptedTags(v interface{}) []string {
	var requested []string
	switch tags := v.(type) {
	case []string:
		requested = tags
	case []interface{}:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				requested = append(requested, s)
			}
		}
	case string:
		requested = []string{tags}
	case nil:
		requested = []string{"AI-Studio-Requests"}
	}

	var accepted []string
	for _, tag := range requested {
		if contains(ticketTags, tag) {
			accepted = append(accepted, tag)
		}
	}
	return accepted
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

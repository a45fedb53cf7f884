package habitica

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/textbot/internal/actions"
)

const serviceName = "habitica"

// APIClient talks to the Habitica v3 API.
type APIClient struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// NewAPIClient creates a Habitica client. clientID is sent as x-client as the API requires.
func NewAPIClient(baseURL, clientID string) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Task is a habit or daily on the user's task list.
type Task struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// ScoreResult is the stat change reported after scoring a task.
type ScoreResult struct {
	Delta float64 `json:"delta"`
	HP    float64 `json:"hp"`
	Exp   float64 `json:"exp"`
	GP    float64 `json:"gp"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// ListHabits returns the user's habits and dailies.
func (c *APIClient) ListHabits(ctx context.Context, userID, apiToken string) ([]Task, error) {
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/tasks/user", userID, apiToken, &tasks); err != nil {
		return nil, err
	}
	habits := tasks[:0]
	for _, task := range tasks {
		if task.Type == "habit" || task.Type == "daily" {
			habits = append(habits, task)
		}
	}
	return habits, nil
}

// ScoreUp scores a task in the positive direction.
func (c *APIClient) ScoreUp(ctx context.Context, userID, apiToken, taskID string) (ScoreResult, error) {
	if taskID == "" {
		return ScoreResult{}, fmt.Errorf("task id is required")
	}
	var result ScoreResult
	path := "/tasks/" + url.PathEscape(taskID) + "/score/up"
	if err := c.do(ctx, http.MethodPost, path, userID, apiToken, &result); err != nil {
		return ScoreResult{}, err
	}
	return result, nil
}

func (c *APIClient) do(ctx context.Context, method, path, userID, apiToken string, out interface{}) error {
	if userID == "" || apiToken == "" {
		return fmt.Errorf("habitica credentials missing")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-user", userID)
	req.Header.Set("x-api-key", apiToken)
	req.Header.Set("x-client", c.clientID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("habitica API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
		message := strings.TrimSpace(string(body))
		if decodeErr == nil && env.Message != "" {
			message = env.Message
		}
		return &actions.ServiceError{Service: serviceName, Status: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to parse habitica response: %w", decodeErr)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to parse habitica data: %w", err)
		}
	}
	return nil
}

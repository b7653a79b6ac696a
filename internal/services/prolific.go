package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProlificClient talks to the Prolific recruitment API using the
// researcher's personal access token.
type ProlificClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewProlificClient creates a client for the given API base URL
func NewProlificClient(baseURL string) *ProlificClient {
	return &ProlificClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ProlificUser is the token owner's account as reported by /users/me/
type ProlificUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	WorkspaceID string `json:"workspace_id"`
}

// ProlificStudy is the subset of upstream study fields the platform mirrors
type ProlificStudy struct {
	ID                    string  `json:"id"`
	Status                string  `json:"status"`
	Name                  string  `json:"name"`
	TotalAvailablePlaces  int     `json:"total_available_places"`
	PlacesTaken           int     `json:"places_taken"`
	SubmissionCount       int     `json:"submission_count"`
	Reward                int     `json:"reward"`
	AverageCompletionTime float64 `json:"average_completion_time"`
	CreatedAt             string  `json:"created_at"`
	StartedAt             string  `json:"started_at"`
}

// StudyRequest is the study definition sent to Prolific on creation
type StudyRequest struct {
	Name                    string        `json:"name"`
	Description             string        `json:"description"`
	ExternalStudyURL        string        `json:"external_study_url"`
	ProlificIDOption        string        `json:"prolific_id_option"`
	EstimatedCompletionTime int           `json:"estimated_completion_time"`
	Reward                  int           `json:"reward"`
	TotalAvailablePlaces    int           `json:"total_available_places"`
	CompletionCode          string        `json:"completion_code"`
	CompletionOption        string        `json:"completion_option"`
	DeviceCompatibility     []string      `json:"device_compatibility"`
	PeripheralRequirements  []string      `json:"peripheral_requirements"`
	EligibilityRequirements []interface{} `json:"eligibility_requirements"`
}

// Me validates a token by fetching the owning account
func (c *ProlificClient) Me(ctx context.Context, token string) (*ProlificUser, error) {
	var user ProlificUser
	if err := c.do(ctx, token, http.MethodGet, "/users/me/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateStudy creates a draft study
func (c *ProlificClient) CreateStudy(ctx context.Context, token string, study StudyRequest) (*ProlificStudy, error) {
	var out ProlificStudy
	if err := c.do(ctx, token, http.MethodPost, "/studies/", study, &out); err != nil {
		return nil, fmt.Errorf("failed to create Prolific study: %w", err)
	}
	return &out, nil
}

// GetStudy fetches study details
func (c *ProlificClient) GetStudy(ctx context.Context, token, studyID string) (*ProlificStudy, error) {
	var out ProlificStudy
	if err := c.do(ctx, token, http.MethodGet, "/studies/"+studyID+"/", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get Prolific study: %w", err)
	}
	return &out, nil
}

// TransitionStudy applies a lifecycle action (PUBLISH, STOP) to a study
func (c *ProlificClient) TransitionStudy(ctx context.Context, token, studyID, action string) error {
	body := map[string]string{"action": action}
	if err := c.do(ctx, token, http.MethodPost, "/studies/"+studyID+"/transition/", body, nil); err != nil {
		return fmt.Errorf("failed to %s Prolific study: %w", action, err)
	}
	return nil
}

func (c *ProlificClient) do(ctx context.Context, token, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s", prolificErrorDetail(resp))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode Prolific response: %w", err)
		}
	}
	return nil
}

// prolificErrorDetail flattens Prolific's nested error payload
// {"error": {"title": ..., "detail": {field: [messages]}}} into one line.
func prolificErrorDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var parsed struct {
		Error struct {
			Title  string                 `json:"title"`
			Detail map[string]interface{} `json:"detail"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error.Title != "" {
			msg := parsed.Error.Title
			for field, messages := range parsed.Error.Detail {
				msg += fmt.Sprintf(" %s: %v", field, messages)
			}
			return msg
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

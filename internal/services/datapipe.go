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

// DatapipeClient talks to the DataPipe archival API (pipe.jspsych.org),
// which relays data files into an OSF project component.
//
// DataPipe has no API for creating experiments; those are created manually
// on the DataPipe site and referenced here by their experiment ID.
type DatapipeClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewDatapipeClient creates a client for the given API base URL
func NewDatapipeClient(baseURL string) *DatapipeClient {
	return &DatapipeClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type datapipeDataRequest struct {
	ExperimentID string `json:"experimentID"`
	Filename     string `json:"filename"`
	// DataPipe requires the payload as a string, not nested JSON
	Data string `json:"data"`
}

type datapipeErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// SendData pushes one participant's data file to DataPipe
func (c *DatapipeClient) SendData(ctx context.Context, datapipeExperimentID, filename string, data []byte) error {
	body, err := json.Marshal(datapipeDataRequest{
		ExperimentID: datapipeExperimentID,
		Filename:     filename,
		Data:         string(data),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/data", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send data to DataPipe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send data to DataPipe: %s", datapipeErrorDetail(resp))
	}
	return nil
}

// GetCondition requests a condition assignment for between-subject designs
func (c *DatapipeClient) GetCondition(ctx context.Context, datapipeExperimentID string) (int, error) {
	body, err := json.Marshal(map[string]string{"experimentID": datapipeExperimentID})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/condition", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to get condition from DataPipe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("failed to get condition from DataPipe: %s", datapipeErrorDetail(resp))
	}

	var out struct {
		Condition int `json:"condition"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode DataPipe condition response: %w", err)
	}
	return out.Condition, nil
}

func datapipeErrorDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed datapipeErrorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

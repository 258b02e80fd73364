package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kurihiro0119/hitbatch/internal/aggregator"
	"github.com/kurihiro0119/hitbatch/internal/api"
	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// Client is the API client for hitbatch
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetEnvironmentStatus retrieves the stored HIT set summary for env
func (c *Client) GetEnvironmentStatus(env domain.Environment) (*aggregator.Summary, error) {
	path := fmt.Sprintf("/api/v1/environments/%s/status", url.PathEscape(env.String()))

	var response struct {
		Data *aggregator.Summary `json:"data"`
	}
	if err := c.do(http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// CompileQualifications compiles each formula line and reports per-line errors
func (c *Client) CompileQualifications(formulae []string) ([]api.CompileResult, error) {
	var response struct {
		Data []api.CompileResult `json:"data"`
	}
	if err := c.do(http.MethodPost, "/api/v1/qualifications/compile", api.CompileRequest{Formulae: formulae}, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// EstimateCost prices a task without creating anything
func (c *Client) EstimateCost(req api.CostRequest) (*api.CostEstimate, error) {
	var response struct {
		Data *api.CostEstimate `json:"data"`
	}
	if err := c.do(http.MethodPost, "/api/v1/cost", req, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.do(http.MethodGet, "/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) do(method, path string, body, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(data))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

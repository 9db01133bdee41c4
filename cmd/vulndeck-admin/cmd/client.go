package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the VulnDeck API HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	verbose    bool
}

// NewClient creates a new API client.
func NewClient(baseURL string, verbose bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		verbose: verbose,
	}
}

// Do performs an HTTP request and returns the response body.
func (c *Client) Do(method, path string, body any) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	return c.doRaw(method, path, reqBody, "application/json")
}

// DoStream performs an HTTP request with a raw body stream. Used for
// report uploads where the body is not JSON built by the CLI.
func (c *Client) DoStream(method, path string, body io.Reader, contentType string) ([]byte, int, error) {
	return c.doRaw(method, path, body, contentType)
}

func (c *Client) doRaw(method, path string, body io.Reader, contentType string) ([]byte, int, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	if c.verbose {
		fmt.Printf(">>> %s %s\n", method, url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if c.verbose {
		fmt.Printf("<<< %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, resp.StatusCode, nil
}

// Get performs a GET request.
func (c *Client) Get(path string) ([]byte, error) {
	data, _, err := c.Do(http.MethodGet, path, nil)
	return data, err
}

// Post performs a POST request.
func (c *Client) Post(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPost, path, body)
	return data, err
}

// Put performs a PUT request.
func (c *Client) Put(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPut, path, body)
	return data, err
}

// Delete performs a DELETE request.
func (c *Client) Delete(path string) error {
	_, _, err := c.Do(http.MethodDelete, path, nil)
	return err
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error.Message != "" {
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Message
		} else if parsed.Message != "" {
			apiErr.Message = parsed.Message
		}
	}

	if apiErr.Message == "" {
		switch statusCode {
		case 404:
			apiErr.Message = "resource not found"
		case 409:
			apiErr.Message = "conflict: the finding changed underneath you, retry"
		case 422:
			apiErr.Message = "validation failed"
		default:
			apiErr.Message = fmt.Sprintf("API error: %d %s", statusCode, http.StatusText(statusCode))
		}
	}

	return apiErr
}

// Response types matching server handler structs.

type StatusResponse struct {
	Active        bool `json:"active"`
	Verified      bool `json:"verified"`
	FalsePositive bool `json:"false_positive"`
	OutOfScope    bool `json:"out_of_scope"`
	Mitigated     bool `json:"mitigated"`
	RiskAccepted  bool `json:"risk_accepted"`
	UnderReview   bool `json:"under_review"`
	Duplicate     bool `json:"duplicate"`
}

type NoteResponse struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	Entry     string `json:"entry"`
	CreatedAt string `json:"created_at"`
}

type FindingResponse struct {
	ID                      string         `json:"id"`
	Title                   string         `json:"title"`
	Description             string         `json:"description,omitempty"`
	References              string         `json:"references,omitempty"`
	Severity                string         `json:"severity"`
	CVSSVector              string         `json:"cvss_vector,omitempty"`
	CVSSScore               *float64       `json:"cvss_score,omitempty"`
	Status                  StatusResponse `json:"status"`
	Reviewers               []string       `json:"reviewers,omitempty"`
	ReviewRequestedAt       *string        `json:"review_requested_at,omitempty"`
	VulnerabilityID         string         `json:"vulnerability_id,omitempty"`
	AdditionalVulnerability []string       `json:"additional_vulnerability_ids,omitempty"`
	TemplateID              string         `json:"template_id,omitempty"`
	Version                 int64          `json:"version"`
	MitigatedAt             *string        `json:"mitigated_at,omitempty"`
	CreatedAt               string         `json:"created_at"`
	UpdatedAt               string         `json:"updated_at"`
	Notes                   []NoteResponse `json:"notes,omitempty"`
}

type FindingListResponse struct {
	Data       []FindingResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

type TemplateResponse struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	References       string   `json:"references,omitempty"`
	Severity         string   `json:"severity"`
	VulnerabilityIDs []string `json:"vulnerability_ids,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type TemplateListResponse struct {
	Data       []TemplateResponse `json:"data"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	TotalPages int                `json:"total_pages"`
}

type EndpointResponse struct {
	ID        string `json:"id"`
	FindingID string `json:"finding_id"`
	Host      string `json:"host"`
	Mitigated bool   `json:"mitigated"`
	CreatedAt string `json:"created_at"`
}

type EndpointListResponse struct {
	Data []EndpointResponse `json:"data"`
}

type BulkEditResponse struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type ImportResponse struct {
	Created    int      `json:"created"`
	FindingIDs []string `json:"finding_ids"`
	Message    string   `json:"message"`
}

type CountResponse struct {
	View  string `json:"view"`
	Count int64  `json:"count"`
}

type ReadyResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

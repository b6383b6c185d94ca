// Package analysisapi is a client for the separate analysis upload API, which
// analyzes a document synchronously and returns the result.
package analysisapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Lllllllleong/legaldocflow/internal/session"
)

var ErrNoSession = errors.New("analysisapi: an authenticated session is required")

// Analysis is the structured result returned by the API.
type Analysis struct {
	Type       string   `json:"type"`
	Location   string   `json:"location"`
	FilingDate string   `json:"filingDate"`
	Amounts    []string `json:"amounts"`
	JudgeName  string   `json:"judgeName,omitempty"`
	Plaintiffs []string `json:"plaintiffs,omitempty"`
	Defendants []string `json:"defendants,omitempty"`
	Claimants  []string `json:"claimants,omitempty"`
}

type StructuredAnalysis struct {
	Date       string `json:"date"`
	Summary    string `json:"summary"`
	CaseNumber string `json:"caseNumber"`
	Amount     string `json:"amount"`
}

type StructuredData struct {
	ExtractedText string             `json:"extractedText"`
	Analysis      StructuredAnalysis `json:"analysis"`
}

type Document struct {
	ID             string         `json:"id"`
	StructuredData StructuredData `json:"structuredData"`
}

// UploadResponse is the body of a successful (201) upload.
type UploadResponse struct {
	Message  string   `json:"message"`
	Analysis Analysis `json:"analysis"`
	Document Document `json:"document"`
}

// Error is a non-201 answer from the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis API returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the API rooted at baseURL. A nil httpClient
// uses a client with a two minute timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("analysisapi: base URL cannot be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}, nil
}

// Upload sends the file for analysis on behalf of sess.
func (c *Client) Upload(ctx context.Context, sess *session.Session, filename string, r io.Reader) (*UploadResponse, error) {
	if sess == nil || sess.Token == "" {
		return nil, ErrNoSession
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+sess.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis API response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, &Error{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}

	var out UploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode analysis API response: %w", err)
	}
	return &out, nil
}

// errorMessage prefers the server's message or error field over the status line.
func errorMessage(raw []byte, status string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 512 {
		return text
	}
	return status
}

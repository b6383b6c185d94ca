// Package analysis extracts structured legal facts from document text.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/legaldocflow/internal/gcp"
	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// ErrEmptyResponse is returned when the model answers with no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// maxInputRunes bounds how much document text is sent in one request.
const maxInputRunes = 200_000

// Analyzer produces a LegalAnalysis for extracted document text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*models.LegalAnalysis, error)
}

// VertexAnalyzer asks the pre-configured Gemini legal analysis model.
type VertexAnalyzer struct {
	model *genai.GenerativeModel
}

func NewVertexAnalyzer(client *gcp.VertexClient) (*VertexAnalyzer, error) {
	if client == nil || client.LegalAnalysisModel == nil {
		return nil, fmt.Errorf("vertex client with a legal analysis model is required")
	}
	return &VertexAnalyzer{model: client.LegalAnalysisModel}, nil
}

func (a *VertexAnalyzer) Analyze(ctx context.Context, text string) (*models.LegalAnalysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("no text to analyze")
	}
	text = truncateRunes(text, maxInputRunes)

	resp, err := a.model.GenerateContent(ctx, genai.Text(gcp.LegalAnalysisUserPrompt+text))
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis from gemini: %w", err)
	}
	return ParseAnalysis(gcp.ResponseText(resp))
}

// ParseAnalysis decodes the model's JSON answer. Whitespace is trimmed from
// every field and blank list entries are dropped.
func ParseAnalysis(raw string) (*models.LegalAnalysis, error) {
	raw = gcp.TrimCodeFence(raw)
	if raw == "" {
		return nil, ErrEmptyResponse
	}
	var out models.LegalAnalysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		slog.Debug("Unparseable analysis response", "responseBody", raw)
		return nil, fmt.Errorf("failed to parse JSON from model: %w", err)
	}

	out.DocumentType = strings.TrimSpace(out.DocumentType)
	out.Location = strings.TrimSpace(out.Location)
	out.FilingDate = strings.TrimSpace(out.FilingDate)
	out.CaseNumber = strings.TrimSpace(out.CaseNumber)
	out.JudgeName = strings.TrimSpace(out.JudgeName)
	out.Summary = strings.TrimSpace(out.Summary)
	out.Plaintiffs = cleanList(out.Plaintiffs)
	out.Defendants = cleanList(out.Defendants)
	out.Claimants = cleanList(out.Claimants)
	out.Amounts = cleanList(out.Amounts)
	return &out, nil
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

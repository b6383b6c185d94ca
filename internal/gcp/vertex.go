package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- Legal Analysis Model Prompts ---
const LegalAnalysisSystemPrompt = "You are a paralegal assistant that reads court filings and legal correspondence. You extract structured case facts exactly as written in the document and never invent information. You must output your response as a single valid JSON object."
const LegalAnalysisUserPrompt = `Read the legal document text provided below and extract the following facts.

Follow these rules precisely:
1.  "documentType": the kind of document (e.g. "Complaint", "Motion to Dismiss", "Judgment", "Letter").
2.  "location": the court or jurisdiction named in the document.
3.  "filingDate": the filing or issue date, formatted as YYYY-MM-DD when a full date is present, otherwise as written.
4.  "caseNumber": the case, docket or claim number exactly as written.
5.  "judgeName": the presiding judge, if named.
6.  "plaintiffs", "defendants", "claimants": arrays of party names.
7.  "amounts": an array of monetary amounts in dispute, each as written including currency.
8.  "summary": two or three sentences describing what the document asks for or decides.
9.  Omit any key whose value does not appear in the document. Do not guess.
10. The output MUST be a single JSON object. Do not include any text before or after it.

Document text:
`

// legalAnalysisSchema constrains the model output to the LegalAnalysis shape.
var legalAnalysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"documentType": {Type: genai.TypeString},
		"location":     {Type: genai.TypeString},
		"filingDate":   {Type: genai.TypeString},
		"caseNumber":   {Type: genai.TypeString},
		"judgeName":    {Type: genai.TypeString},
		"plaintiffs":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"defendants":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"claimants":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"amounts":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"summary":      {Type: genai.TypeString, Description: "Two or three sentence summary."},
	},
}

// VertexClient holds the pre-configured generative models for our app.
type VertexClient struct {
	LegalAnalysisModel *genai.GenerativeModel
	baseClient         *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	analysisModel := baseClient.GenerativeModel(modelName)
	analysisModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(LegalAnalysisSystemPrompt)},
	}
	analysisModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   legalAnalysisSchema,
		Temperature:      genai.Ptr[float32](0.0),
	}
	// Filings routinely quote violent or abusive conduct verbatim.
	analysisModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		LegalAnalysisModel: analysisModel,
		baseClient:         baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// ResponseText concatenates the text parts of the first candidate and strips
// any markdown code fence the model wrapped around it.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return TrimCodeFence(sb.String())
}

// TrimCodeFence removes a surrounding ``` or ```json fence.
func TrimCodeFence(s string) string {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

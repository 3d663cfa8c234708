package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/iris/internal/models"
)

// AnalysisRequest is everything an Analyzer needs for one call.
type AnalysisRequest struct {
	Image       models.ImageIdentity
	Action      models.Action
	Instruction string
	// Context is nil when the request was made without note context.
	Context *models.NoteContext
	// Data holds the image bytes for vault images; nil for external ones.
	Data []byte
}

// Analyzer produces an analysis for one image.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (models.AnalysisResult, error)
}

// HTTPAnalyzer posts analysis requests as JSON to a webhook endpoint.
type HTTPAnalyzer struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPAnalyzer creates an analyzer for endpoint. token, when set, is
// sent as a Bearer credential.
func NewHTTPAnalyzer(endpoint, token string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

type webhookRequest struct {
	Action      models.Action        `json:"action"`
	Prompt      string               `json:"prompt"`
	Instruction string               `json:"instruction,omitempty"`
	Image       models.ImageIdentity `json:"image"`
	ImageBase64 string               `json:"image_base64,omitempty"`
	Context     *models.NoteContext  `json:"context,omitempty"`
}

type webhookResponse struct {
	models.AnalysisResult
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze implements Analyzer.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (models.AnalysisResult, error) {
	body := webhookRequest{
		Action:      req.Action,
		Prompt:      BuildPrompt(req),
		Instruction: req.Instruction,
		Image:       req.Image,
		Context:     req.Context,
	}
	if len(req.Data) > 0 {
		body.ImageBase64 = base64.StdEncoding.EncodeToString(req.Data)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, fmt.Errorf("analyzer error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out webhookResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != nil {
		return models.AnalysisResult{}, fmt.Errorf("analyzer error: %s", out.Error.Message)
	}
	if strings.TrimSpace(out.Content) == "" {
		return models.AnalysisResult{}, fmt.Errorf("empty response")
	}
	return out.AnalysisResult, nil
}

// BuildPrompt renders the instruction sent to the model: the task for the
// action followed by whatever note context is available.
func BuildPrompt(req AnalysisRequest) string {
	var sb strings.Builder

	switch req.Action {
	case models.ActionDescribe:
		sb.WriteString("Describe this image in a few sentences.")
	case models.ActionOCR:
		sb.WriteString("Transcribe all text visible in this image. Return only the text.")
	case models.ActionAltText:
		sb.WriteString("Write concise alt text (one sentence) for this image.")
	case models.ActionCustom:
		sb.WriteString(req.Instruction)
	}
	sb.WriteString("\n")

	nc := req.Context
	if nc == nil {
		return sb.String()
	}

	sb.WriteString("\nThe image is embedded in the note \"")
	sb.WriteString(nc.NoteName)
	sb.WriteString("\".\n")
	if len(nc.SectionPath) > 0 {
		sb.WriteString("Section: ")
		sb.WriteString(strings.Join(nc.SectionPath, " > "))
		sb.WriteString("\n")
	}
	if len(nc.Tags) > 0 {
		sb.WriteString("Tags: ")
		sb.WriteString(strings.Join(nc.Tags, ", "))
		sb.WriteString("\n")
	}
	if nc.SectionText != "" {
		sb.WriteString("\nSection text:\n")
		sb.WriteString(nc.SectionText)
		sb.WriteString("\n")
	}
	if len(nc.RelatedLinks) > 0 {
		sb.WriteString("\nRelated notes:\n")
		for _, l := range nc.RelatedLinks {
			sb.WriteString("- ")
			sb.WriteString(l.Title)
			if l.Excerpt != "" && l.Excerpt != l.Title {
				sb.WriteString(": ")
				sb.WriteString(l.Excerpt)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/finding"
)

const defaultModel = "gemini-1.5-flash"

const systemPrompt = `You are a security triage assistant for an attack
surface management platform. Given one finding, respond with ONLY a JSON
object, no markdown fences, with these fields:
  severity:    one of critical, high, medium, low, info
  status:      the proposed next workflow status
  rationale:   one or two sentences justifying the proposal
  remediation: short remediation guidance, or ""
  confidence:  number between 0 and 1
The proposed status must be chosen from the allowed transitions listed in
the request.`

// GeminiAdvisor implements Advisor using a Gemini model.
type GeminiAdvisor struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

// NewGeminiAdvisor creates an advisor. Temperature is pinned to zero so
// repeated runs over the same finding agree.
func NewGeminiAdvisor(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiAdvisor, error) {
	if apiKey == "" {
		return nil, surface.NewConfigurationError("triage.NewGeminiAdvisor",
			fmt.Errorf("API key cannot be empty"))
	}
	if modelName == "" {
		modelName = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, surface.NewNetworkError("triage.NewGeminiAdvisor", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	return &GeminiAdvisor{
		client: client,
		model:  model,
		logger: logger.With("component", "triage"),
	}, nil
}

// Suggest proposes a triage action for the finding.
func (g *GeminiAdvisor) Suggest(ctx context.Context, f *finding.Finding) (*Suggestion, error) {
	prompt := buildPrompt(f)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, surface.NewNetworkError("triage.Suggest", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, surface.NewInternalError("triage.Suggest",
			fmt.Errorf("no response candidates"))
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	suggestion, err := parseSuggestion(text)
	if err != nil {
		g.logger.Warn("unparseable triage response", "finding_id", f.ID, "error", err)
		return nil, surface.NewInternalError("triage.Suggest", err)
	}
	if err := suggestion.Validate(f); err != nil {
		g.logger.Warn("rejecting inconsistent triage suggestion",
			"finding_id", f.ID, "error", err)
		return nil, surface.NewValidationError("triage.Suggest", err)
	}
	return suggestion, nil
}

// Close releases the underlying client.
func (g *GeminiAdvisor) Close() error {
	return g.client.Close()
}

// buildPrompt renders the finding and its legal transitions for the model.
func buildPrompt(f *finding.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", f.Title)
	fmt.Fprintf(&b, "Description: %s\n", f.Description)
	fmt.Fprintf(&b, "Current severity: %s\n", f.Severity)
	fmt.Fprintf(&b, "Current status: %s\n", f.Status)
	if f.CVE != "" {
		fmt.Fprintf(&b, "CVE: %s\n", f.CVE)
	}
	if f.CVSSScore != nil {
		fmt.Fprintf(&b, "CVSS score: %.1f\n", *f.CVSSScore)
	}
	if f.Source.Tool != "" {
		fmt.Fprintf(&b, "Reported by: %s\n", f.Source.Tool)
	}

	next := finding.NextStatuses(f.Status)
	names := make([]string, 0, len(next)+1)
	names = append(names, f.Status.String())
	for _, s := range next {
		names = append(names, s.String())
	}
	fmt.Fprintf(&b, "Allowed statuses: %s\n", strings.Join(names, ", "))
	return b.String()
}

// parseSuggestion decodes the model output, tolerating markdown code
// fences around the JSON object but nothing else.
func parseSuggestion(text string) (*Suggestion, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var s Suggestion
	if err := json.Unmarshal([]byte(cleaned), &s); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion: %w", err)
	}
	return &s, nil
}

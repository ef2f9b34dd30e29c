package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
)

// GeminiProvider generates content through Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider dials the Gemini API. Close the provider to release the
// connection.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// Generate sends the prompt with prior history and returns the raw response
// text. System turns become the model's system instruction; the chat API
// itself only accepts user and model roles.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, history []ports.HistoryTurn) (string, error) {
	model := p.client.GenerativeModel(p.model)

	var system strings.Builder
	var contents []*genai.Content
	for _, turn := range history {
		switch turn.Role {
		case ports.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(turn.Content)
		case ports.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(turn.Content)}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(turn.Content)}})
		}
	}
	if system.Len() > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system.String())}}
	}

	chat := model.StartChat()
	chat.History = contents

	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyGeminiErr(err)
	}
	if blocked, reason := geminiBlocked(resp); blocked {
		return "", fmt.Errorf("%w: %s", ports.ErrRejected, reason)
	}
	// Empty unblocked text is left for the content parser to flag.
	return geminiText(resp), nil
}

// Close releases the underlying API connection.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// classifyGeminiErr maps SDK failures onto the provider error taxonomy.
func classifyGeminiErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ports.ErrUnavailable, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return fmt.Errorf("%w: %v", ports.ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ports.ErrRejected, err)
	}
	// Anything else is transport trouble worth another attempt.
	return fmt.Errorf("%w: %v", ports.ErrUnavailable, err)
}

// geminiBlocked reports whether the response was withheld by a safety
// filter, on either the prompt or the candidate.
func geminiBlocked(resp *genai.GenerateContentResponse) (bool, string) {
	if resp == nil {
		return false, ""
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return true, fmt.Sprintf("prompt blocked (%v)", resp.PromptFeedback.BlockReason)
	}
	for _, cand := range resp.Candidates {
		if cand.FinishReason == genai.FinishReasonSafety {
			return true, "response blocked by safety filter"
		}
	}
	return false, ""
}

// geminiText concatenates the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text.WriteString(string(txt))
			}
		}
	}
	return text.String()
}

// Ensure GeminiProvider implements the Provider interface.
var _ ports.Provider = (*GeminiProvider)(nil)

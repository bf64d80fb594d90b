package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultModel = "gemini-2.5-flash"

// GeminiService is a thin client for the Gemini generateContent REST endpoint
type GeminiService struct {
	ApiKey string
	Model  string
	client *http.Client
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{ApiKey: apiKey, Model: defaultModel, client: &http.Client{}}
}

// APIError is a non-200 response from Gemini
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Gemini API error (%d): %s", e.StatusCode, e.Body)
}

// GenerateContent sends a single-turn prompt and returns the first candidate's text.
// jsonOutput asks the model for an application/json response.
func (g *GeminiService) GenerateContent(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	url := "https://generativelanguage.googleapis.com/v1beta/models/" + g.Model + ":generateContent?key=" + g.ApiKey

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	if jsonOutput {
		payload["generationConfig"] = map[string]interface{}{
			"responseMimeType": "application/json",
			"temperature":      0.1,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		return result.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", fmt.Errorf("no content returned")
}

package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
	"github.com/tidwall/gjson"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// GeminiEnhancer calls the generateContent REST endpoint directly.
type GeminiEnhancer struct {
	Client  *http.Client
	BaseURL string
	Model   string
	Key     string
}

func NewGeminiEnhancer(i *do.Injector) (*GeminiEnhancer, error) {
	return &GeminiEnhancer{
		Client:  do.MustInvoke[*http.Client](i),
		BaseURL: do.MustInvokeNamed[string](i, "gemini_base_url"),
		Model:   do.MustInvokeNamed[string](i, "gemini_text_model"),
		Key:     do.MustInvokeNamed[string](i, "gemini_key"),
	}, nil
}

func (e *GeminiEnhancer) Enhance(ctx context.Context, prompt string, opts image.Options) string {
	log := log.FromContextOrDiscard(ctx).WithGroup("enhancer").With("model", e.Model)

	enhanced, err := e.enhance(ctx, prompt, opts)
	if err != nil {
		log.Warn("prompt enhancement failed, using original prompt", "error", err)
		return prompt
	}
	log.Info("enhanced prompt", "prompt", enhanced)
	return enhanced
}

func (e *GeminiEnhancer) enhance(ctx context.Context, prompt string, opts image.Options) (string, error) {
	body, err := json.Marshal(generateContentRequest{
		Contents: []content{{Parts: []part{{Text: Instruction(prompt, opts)}}}},
		GenerationConfig: generationConfig{
			Temperature:     Temperature,
			TopK:            TopK,
			TopP:            TopP,
			MaxOutputTokens: MaxOutputTokens,
		},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", e.BaseURL, e.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.Key)

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(data))
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("malformed response body")
	}

	return firstText(data, prompt), nil
}

// firstText reads candidates[0].content.parts[0].text, falling back to prompt
// when the path is absent or blank.
func firstText(data []byte, prompt string) string {
	text := strings.TrimSpace(gjson.GetBytes(data, "candidates.0.content.parts.0.text").String())
	if text == "" {
		return prompt
	}
	return text
}

var _ Enhancer = (*GeminiEnhancer)(nil)

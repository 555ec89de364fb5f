package enhance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/google/generative-ai-go/genai"
	"github.com/samber/do"
	"google.golang.org/api/option"
)

// SDKEnhancer goes through the generative-ai-go client instead of raw HTTP.
// The client does not use the shared *http.Client, so each call is bounded by
// timeout instead.
type SDKEnhancer struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	generate func(ctx context.Context, instruction string) (*genai.GenerateContentResponse, error)
}

func NewSDKEnhancer(i *do.Injector) (*SDKEnhancer, error) {
	ctx := do.MustInvokeNamed[context.Context](i, "root_context")
	key := do.MustInvokeNamed[string](i, "gemini_key")

	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	e := &SDKEnhancer{
		client:  client,
		model:   do.MustInvokeNamed[string](i, "gemini_text_model"),
		timeout: do.MustInvokeNamed[time.Duration](i, "request_timeout"),
	}
	e.generate = e.generateContent
	return e, nil
}

func (e *SDKEnhancer) Enhance(ctx context.Context, prompt string, opts image.Options) string {
	log := log.FromContextOrDiscard(ctx).WithGroup("enhancer").With("model", e.model, "backend", "sdk")

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.generate(ctx, Instruction(prompt, opts))
	if err != nil {
		log.Warn("prompt enhancement failed, using original prompt", "error", err)
		return prompt
	}

	enhanced := sdkText(resp, prompt)
	log.Info("enhanced prompt", "prompt", enhanced)
	return enhanced
}

func (e *SDKEnhancer) generateContent(ctx context.Context, instruction string) (*genai.GenerateContentResponse, error) {
	model := e.client.GenerativeModel(e.model)
	model.SetTemperature(Temperature)
	model.SetTopK(TopK)
	model.SetTopP(TopP)
	model.SetMaxOutputTokens(MaxOutputTokens)
	return model.GenerateContent(ctx, genai.Text(instruction))
}

func sdkText(resp *genai.GenerateContentResponse, prompt string) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return prompt
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return prompt
	}
	text, ok := c.Content.Parts[0].(genai.Text)
	if !ok || strings.TrimSpace(string(text)) == "" {
		return prompt
	}
	return strings.TrimSpace(string(text))
}

// Shutdown releases the underlying client when the injector shuts down.
func (e *SDKEnhancer) Shutdown() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

var _ Enhancer = (*SDKEnhancer)(nil)

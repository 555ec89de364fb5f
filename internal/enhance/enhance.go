package enhance

import (
	"context"
	"fmt"

	"github.com/dmorgan81/imagegen/internal/image"
)

const (
	Temperature     = 0.7
	TopK            = 40
	TopP            = 0.95
	MaxOutputTokens = 1024
)

const instructionTemplate = `
You are an expert image prompt engineer. Enhance the following prompt for AI image generation.

Original prompt: "%s"

Style: %s
Size: %s

Please enhance this prompt by:
1. Adding specific details about lighting, composition, and atmosphere
2. Including technical quality specifications (8k, ultra-realistic, etc.)
3. Adding relevant artistic elements that match the style
4. Making it more descriptive and detailed

Return ONLY the enhanced prompt, no explanations or additional text.
`

// Enhancer rewrites a prompt with more descriptive detail. It never fails:
// implementations return the original prompt when the rewrite is unavailable.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string, opts image.Options) string
}

func Instruction(prompt string, opts image.Options) string {
	return fmt.Sprintf(instructionTemplate, prompt, opts.StyleOrDefault(), opts.SizeOrDefault())
}

// Passthrough skips enhancement entirely.
type Passthrough struct{}

func (Passthrough) Enhance(_ context.Context, prompt string, _ image.Options) string {
	return prompt
}

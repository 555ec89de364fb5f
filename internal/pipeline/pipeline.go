package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmorgan81/imagegen/internal/enhance"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/samber/do"
)

type Result struct {
	Images         []image.Image
	EnhancedPrompt string
	Requested      int
}

// Warning describes a partial result, or returns "" when every requested
// image came back.
func (r *Result) Warning() string {
	if len(r.Images) >= r.Requested {
		return ""
	}
	return fmt.Sprintf("%d of %d requested images generated", len(r.Images), r.Requested)
}

// Pipeline validates a prompt, enhances it on a best-effort basis, then
// renders it. The steps run strictly in sequence.
type Pipeline struct {
	enhancer  enhance.Enhancer
	generator image.Generator
}

func NewPipeline(i *do.Injector) (*Pipeline, error) {
	return New(do.MustInvoke[enhance.Enhancer](i), do.MustInvoke[image.Generator](i)), nil
}

func New(enhancer enhance.Enhancer, generator image.Generator) *Pipeline {
	return &Pipeline{enhancer: enhancer, generator: generator}
}

func (p *Pipeline) Run(ctx context.Context, raw string, opts image.Options) (*Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("pipeline")

	text, err := prompt.Validate(raw)
	if err != nil {
		log.Info("rejected prompt", "error", err)
		return nil, err
	}

	enhanced := p.enhancer.Enhance(ctx, text, opts)

	images, err := p.generator.Generate(ctx, enhanced, opts)
	if err != nil {
		var gerr *image.GenerationError
		if !errors.As(err, &gerr) {
			gerr = &image.GenerationError{Message: "Failed to generate image", Err: err}
		}
		log.Error("generation failed", "error", gerr.Detail())
		return nil, gerr
	}

	res := &Result{Images: images, EnhancedPrompt: enhanced, Requested: opts.SampleCount()}
	if w := res.Warning(); w != "" {
		log.Warn("partial generation", "warning", w)
	}
	return res, nil
}

package inject

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/enhance"
	"github.com/dmorgan81/imagegen/internal/feed"
	"github.com/dmorgan81/imagegen/internal/handler"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/page"
	"github.com/dmorgan81/imagegen/internal/param"
	"github.com/dmorgan81/imagegen/internal/pipeline"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/server"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: cfg.RequestTimeout})

	do.ProvideNamedValue[context.Context](injector, "root_context", ctx)
	do.ProvideNamedValue[string](injector, "addr", cfg.Addr())
	do.ProvideNamedValue[time.Duration](injector, "request_timeout", cfg.RequestTimeout)
	do.ProvideNamedValue[string](injector, "public_url", cfg.PublicURL)
	do.ProvideNamedValue[string](injector, "gemini_base_url", cfg.GeminiBaseURL)
	do.ProvideNamedValue[string](injector, "gemini_text_model", cfg.GeminiTextModel)
	do.ProvideNamedValue[string](injector, "gemini_image_model", cfg.GeminiImageModel)
	do.ProvideNamedValue[string](injector, "export_bucket", cfg.ExportBucket)
	do.ProvideNamedValue[string](injector, "export_distribution", cfg.ExportDistribution)
	do.ProvideNamedValue[time.Duration](injector, "export_stagger", cfg.ExportStagger)
	do.ProvideNamedValue[time.Duration](injector, "session_idle_timeout", cfg.SessionIdleTimeout)

	do.Provide[*param.ParameterStoreFetcher](injector, param.NewParameterStoreFetcher)
	do.ProvideNamed[string](injector, "gemini_key", func(i *do.Injector) (string, error) {
		return fetcherFor(i, cfg.GeminiAPIKeyParam).Fetch(ctx, lo.CoalesceOrEmpty(cfg.GeminiAPIKeyParam, "GEMINI_API_KEY"))
	})
	do.ProvideNamed[[]string](injector, "sample_prompts", func(i *do.Injector) ([]string, error) {
		return fetcherFor(i, cfg.SamplePromptsParam).FetchAll(ctx, lo.CoalesceOrEmpty(cfg.SamplePromptsParam, "SAMPLE_PROMPTS"))
	})

	do.Provide[enhance.Enhancer](injector, func(i *do.Injector) (enhance.Enhancer, error) {
		switch cfg.EnhancerBackend {
		case config.BackendSDK:
			return enhance.NewSDKEnhancer(i)
		case config.BackendNone:
			return enhance.Passthrough{}, nil
		default:
			return enhance.NewGeminiEnhancer(i)
		}
	})
	do.Provide[image.Generator](injector, image.NewImagenGenerator)
	do.Provide[*pipeline.Pipeline](injector, pipeline.NewPipeline)

	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		if cfg.ExportBucket != "" {
			return store.NewS3Uploader(i)
		}
		return &store.FileUploader{Dir: cfg.ExportDir}, nil
	})
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if cfg.ExportDistribution != "" {
			return store.NewCloudFrontInvalidator(i)
		}
		return store.NoopInvalidator{}, nil
	})
	do.Provide[*store.Exporter](injector, store.NewExporter)

	do.Provide[*session.Manager](injector, session.NewManager)
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
	do.Provide[*page.Templator](injector, page.NewTemplator)
	do.Provide[*feed.Generator](injector, feed.NewGenerator)

	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*server.Server](injector, server.NewServer)

	return injector
}

// fetcherFor reads from Parameter Store when an SSM path is configured and
// from the environment otherwise.
func fetcherFor(i *do.Injector, path string) param.Fetcher {
	if path != "" {
		return do.MustInvoke[*param.ParameterStoreFetcher](i)
	}
	return param.EnvFetcher{}
}

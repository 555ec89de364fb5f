package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

type instance struct {
	Prompt          string   `json:"prompt"`
	NegativePrompt  string   `json:"negativePrompt,omitempty"`
	Seed            *int64   `json:"seed,omitempty"`
	GuidanceScale   *float64 `json:"guidanceScale,omitempty"`
	AspectRatio     string   `json:"aspectRatio"`
	SampleCount     int      `json:"sampleCount"`
	SampleImageSize string   `json:"sampleImageSize"`
}

type predictRequest struct {
	Instances []instance `json:"instances"`
}

type prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

// ImagenGenerator renders images through the Imagen :predict endpoint.
type ImagenGenerator struct {
	Client  *http.Client
	BaseURL string
	Model   string
	Key     string
	Now     func() time.Time
}

func NewImagenGenerator(i *do.Injector) (Generator, error) {
	return &ImagenGenerator{
		Client:  do.MustInvoke[*http.Client](i),
		BaseURL: do.MustInvokeNamed[string](i, "gemini_base_url"),
		Model:   do.MustInvokeNamed[string](i, "gemini_image_model"),
		Key:     do.MustInvokeNamed[string](i, "gemini_key"),
		Now:     time.Now,
	}, nil
}

func newInstance(prompt string, opts Options) instance {
	return instance{
		Prompt:          prompt,
		NegativePrompt:  lo.FromPtr(opts.NegativePrompt),
		Seed:            opts.Seed,
		GuidanceScale:   opts.Guidance,
		AspectRatio:     opts.AspectRatioOrDefault(),
		SampleCount:     opts.SampleCount(),
		SampleImageSize: opts.SizeOrDefault(),
	}
}

func (g *ImagenGenerator) Generate(ctx context.Context, prompt string, opts Options) ([]Image, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("imagen").With("model", g.Model)

	inst := newInstance(prompt, opts)
	log.Info("generating images", "sampleCount", inst.SampleCount, "aspectRatio", inst.AspectRatio, "size", inst.SampleImageSize)

	body, err := json.Marshal(predictRequest{Instances: []instance{inst}})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:predict", g.BaseURL, g.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.Key)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, &GenerationError{Message: "Failed to generate image", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GenerationError{Message: "Failed to generate image", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("imagen api error", "status", resp.StatusCode, "body", string(data))
		msg := gjson.GetBytes(data, "error.message").String()
		return nil, &GenerationError{
			Message:    lo.CoalesceOrEmpty(msg, fmt.Sprintf("Image generation failed: %d", resp.StatusCode)),
			StatusCode: resp.StatusCode,
		}
	}

	var out predictResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &GenerationError{Message: "Failed to generate image", StatusCode: resp.StatusCode, Err: err}
	}

	images := g.normalize(ctx, out.Predictions, prompt, opts)
	if len(images) == 0 {
		return nil, &GenerationError{Message: MessageNoImages, StatusCode: resp.StatusCode}
	}
	log.Info("received images", "predictions", len(out.Predictions), "images", len(images))
	return images, nil
}

// normalize keeps the predictions carrying decodable image bytes. The rest are
// dropped without failing the call.
func (g *ImagenGenerator) normalize(ctx context.Context, predictions []prediction, prompt string, opts Options) []Image {
	log := log.FromContextOrDiscard(ctx).WithGroup("imagen")

	usable := lo.Filter(predictions, func(p prediction, idx int) bool {
		if p.BytesBase64Encoded == "" {
			log.Warn("prediction has no image bytes", "index", idx)
			return false
		}
		if _, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded); err != nil {
			log.Warn("prediction has malformed image bytes", "index", idx, "error", err)
			return false
		}
		return true
	})

	return lo.Map(usable, func(p prediction, _ int) Image {
		now := g.now()
		return Image{
			ID:        "img_" + uuid.NewString(),
			Prompt:    prompt,
			ImageData: p.BytesBase64Encoded,
			Timestamp: now.Format(TimestampLayout),
			CreatedAt: now,
			Options:   opts,
		}
	})
}

func (g *ImagenGenerator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

var _ Generator = (*ImagenGenerator)(nil)

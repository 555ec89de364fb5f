package image_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmorgan81/imagegen/internal/image"
)

type captured struct {
	path   string
	key    string
	header http.Header
	body   map[string]any
}

func newUpstream(t *testing.T, status int, payload string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.key = r.Header.Get("x-goog-api-key")
		c.header = r.Header.Clone()
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &c.body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newGenerator(srv *httptest.Server) *image.ImagenGenerator {
	return &image.ImagenGenerator{
		Client:  srv.Client(),
		BaseURL: srv.URL,
		Model:   "imagen-3.0-generate-002",
		Key:     "test-key",
		Now: func() time.Time {
			return time.Date(2026, time.October, 19, 15, 4, 0, 0, time.UTC)
		},
	}
}

func decodeOptions(t *testing.T, raw string) image.Options {
	t.Helper()
	var opts image.Options
	require.NoError(t, json.Unmarshal([]byte(raw), &opts))
	return opts
}

func TestImagenGenerator_RequestDefaults(t *testing.T) {
	srv, c := newUpstream(t, http.StatusOK, `{"predictions":[{"bytesBase64Encoded":"QQ=="}]}`)

	_, err := newGenerator(srv).Generate(context.Background(), "A mystical forest with glowing mushrooms", image.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, "/v1beta/models/imagen-3.0-generate-002:predict", c.path)
	require.Equal(t, "test-key", c.key)
	require.Equal(t, "application/json", c.header.Get("Content-Type"))

	instances := c.body["instances"].([]any)
	require.Len(t, instances, 1)
	inst := instances[0].(map[string]any)
	require.Equal(t, map[string]any{
		"prompt":          "A mystical forest with glowing mushrooms",
		"aspectRatio":     "1:1",
		"sampleCount":     float64(1),
		"sampleImageSize": "1024x1024",
	}, inst)
}

func TestImagenGenerator_RequestOptionalFields(t *testing.T) {
	tests := []struct {
		name    string
		options string
		want    map[string]any
		absent  []string
	}{
		{
			name:    "all present as strings",
			options: `{"size":"512x512","aspectRatio":"16:9","negativePrompt":"blurry","seed":"42","guidance":"7.5","numImages":"3"}`,
			want: map[string]any{
				"negativePrompt":  "blurry",
				"seed":            float64(42),
				"guidanceScale":   7.5,
				"aspectRatio":     "16:9",
				"sampleCount":     float64(3),
				"sampleImageSize": "512x512",
			},
		},
		{
			name:    "blank form fields are absent",
			options: `{"negativePrompt":"","seed":"","guidance":"","numImages":""}`,
			want:    map[string]any{"sampleCount": float64(1)},
			absent:  []string{"negativePrompt", "seed", "guidanceScale"},
		},
		{
			name:    "zero seed is forwarded",
			options: `{"seed":0,"guidance":0}`,
			want:    map[string]any{"seed": float64(0), "guidanceScale": float64(0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c := newUpstream(t, http.StatusOK, `{"predictions":[{"bytesBase64Encoded":"QQ=="}]}`)

			_, err := newGenerator(srv).Generate(context.Background(), "a lighthouse at dusk", decodeOptions(t, tt.options))
			require.NoError(t, err)

			inst := c.body["instances"].([]any)[0].(map[string]any)
			for k, v := range tt.want {
				require.Equal(t, v, inst[k], k)
			}
			for _, k := range tt.absent {
				require.NotContains(t, inst, k)
			}
		})
	}
}

func TestImagenGenerator_Normalization(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{
			name:    "single image",
			payload: `{"predictions":[{"bytesBase64Encoded":"QQ=="}]}`,
			want:    []string{"QQ=="},
		},
		{
			name:    "skips entries without bytes",
			payload: `{"predictions":[{"bytesBase64Encoded":"QQ=="},{},{"bytesBase64Encoded":""},{"bytesBase64Encoded":"Qg=="}]}`,
			want:    []string{"QQ==", "Qg=="},
		},
		{
			name:    "skips undecodable bytes",
			payload: `{"predictions":[{"bytesBase64Encoded":"not base64!"},{"bytesBase64Encoded":"QUJD"}]}`,
			want:    []string{"QUJD"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newUpstream(t, http.StatusOK, tt.payload)
			opts := decodeOptions(t, `{"style":"anime","numImages":4}`)

			images, err := newGenerator(srv).Generate(context.Background(), "a red fox in fresh snow", opts)
			require.NoError(t, err)
			require.Len(t, images, len(tt.want))

			ids := map[string]bool{}
			for i, img := range images {
				require.Equal(t, tt.want[i], img.ImageData)
				require.Equal(t, "a red fox in fresh snow", img.Prompt)
				require.Equal(t, "Oct 19, 03:04 PM", img.Timestamp)
				require.Equal(t, opts, img.Options)
				require.Regexp(t, `^img_[0-9a-f-]{36}$`, img.ID)
				ids[img.ID] = true
			}
			require.Len(t, ids, len(images))
		})
	}
}

func TestImagenGenerator_NoImages(t *testing.T) {
	payloads := []string{
		`{"predictions":[{}]}`,
		`{"predictions":[]}`,
		`{}`,
		`{"predictions":[{"bytesBase64Encoded":""},{"mimeType":"image/png"}]}`,
	}
	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			srv, _ := newUpstream(t, http.StatusOK, payload)

			images, err := newGenerator(srv).Generate(context.Background(), "a red fox in fresh snow", image.DefaultOptions())
			require.Nil(t, images)

			var gerr *image.GenerationError
			require.True(t, errors.As(err, &gerr))
			require.Equal(t, "No images were generated", gerr.Error())
		})
	}
}

func TestImagenGenerator_UpstreamError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
		want    string
	}{
		{
			name:    "message from upstream",
			status:  http.StatusBadRequest,
			payload: `{"error":{"code":400,"message":"Image generation failed with the following error: prompt blocked","status":"INVALID_ARGUMENT"}}`,
			want:    "Image generation failed with the following error: prompt blocked",
		},
		{
			name:    "generic message",
			status:  http.StatusServiceUnavailable,
			payload: `upstream unavailable`,
			want:    "Image generation failed: 503",
		},
		{
			name:    "empty error object",
			status:  http.StatusForbidden,
			payload: `{"error":{}}`,
			want:    "Image generation failed: 403",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newUpstream(t, tt.status, tt.payload)

			_, err := newGenerator(srv).Generate(context.Background(), "a red fox in fresh snow", image.DefaultOptions())
			var gerr *image.GenerationError
			require.True(t, errors.As(err, &gerr))
			require.Equal(t, tt.want, gerr.Error())
			require.Equal(t, tt.status, gerr.StatusCode)
		})
	}
}

func TestImagenGenerator_TransportError(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, `{}`)
	gen := newGenerator(srv)
	srv.Close()

	_, err := gen.Generate(context.Background(), "a red fox in fresh snow", image.DefaultOptions())
	var gerr *image.GenerationError
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, "Failed to generate image", gerr.Error())
	require.Error(t, gerr.Unwrap())
}

func TestImagenGenerator_Cancelled(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, `{"predictions":[{"bytesBase64Encoded":"QQ=="}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newGenerator(srv).Generate(ctx, "a red fox in fresh snow", image.DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestImagenGenerator_Idempotence(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, `{"predictions":[{"bytesBase64Encoded":"QQ=="}]}`)
	gen := newGenerator(srv)
	tick := time.Date(2026, time.October, 19, 15, 4, 0, 0, time.UTC)
	gen.Now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	opts := decodeOptions(t, `{"style":"watercolor","seed":"7"}`)

	first, err := gen.Generate(context.Background(), "a lighthouse at dusk", opts)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), "a lighthouse at dusk", opts)
	require.NoError(t, err)

	require.NotEqual(t, first[0].ID, second[0].ID)
	require.NotEqual(t, first[0].Timestamp, second[0].Timestamp)
	require.Equal(t, first[0].ImageData, second[0].ImageData)
	require.Equal(t, first[0].Options, second[0].Options)
}

package enhance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"

	"github.com/dmorgan81/imagegen/internal/image"
)

func TestSDKEnhancer_Timeout(t *testing.T) {
	var deadline time.Time
	e := &SDKEnhancer{
		model:   "gemini-test",
		timeout: 20 * time.Millisecond,
		generate: func(ctx context.Context, _ string) (*genai.GenerateContentResponse, error) {
			deadline, _ = ctx.Deadline()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	start := time.Now()
	got := e.Enhance(context.Background(), original, image.Options{})
	require.Equal(t, original, got)
	require.False(t, deadline.IsZero())
	require.Less(t, time.Since(start), time.Second)
}

func TestSDKEnhancer_Enhance(t *testing.T) {
	var instruction string
	e := &SDKEnhancer{
		model:   "gemini-test",
		timeout: time.Second,
		generate: func(_ context.Context, text string) (*genai.GenerateContentResponse, error) {
			instruction = text
			return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text(" a glowing forest at night ")}},
			}}}, nil
		},
	}

	require.Equal(t, "a glowing forest at night", e.Enhance(context.Background(), original, image.Options{Style: "anime"}))
	require.Equal(t, Instruction(original, image.Options{Style: "anime"}), instruction)
	require.NoError(t, e.Shutdown())
}

func TestSDKEnhancer_ErrorFallsBack(t *testing.T) {
	e := &SDKEnhancer{
		model: "gemini-test",
		generate: func(context.Context, string) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	require.Equal(t, original, e.Enhance(context.Background(), original, image.Options{}))
}

package image

import (
	"context"
	"fmt"
	"time"
)

// TimestampLayout renders creation times like "Oct 19, 03:04 PM".
const TimestampLayout = "Jan 2, 03:04 PM"

const MessageNoImages = "No images were generated"

type Image struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	ImageData string    `json:"imageData"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
	Options   Options   `json:"options"`
}

// GenerationError reports that the image API rejected a request or returned
// nothing usable. Message is safe to show to end users.
type GenerationError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Detail() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) ([]Image, error)
}

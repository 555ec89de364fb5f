package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/dmorgan81/imagegen/internal/feed"
	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/page"
	"github.com/dmorgan81/imagegen/internal/pipeline"
	"github.com/dmorgan81/imagegen/internal/prompt"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/dmorgan81/imagegen/internal/store"
	"github.com/samber/do"
)

const (
	ActionGenerate   = "generate"
	ActionRegenerate = "regenerate"
	ActionList       = "list"
	ActionClear      = "clear"
	ActionExport     = "export"
	ActionExportAll  = "exportAll"
)

// Input is the payload of a direct Lambda invocation. Action defaults to
// generate.
type Input struct {
	Action    string        `json:"action,omitempty"`
	SessionID string        `json:"sessionId"`
	Prompt    string        `json:"prompt,omitempty"`
	ImageID   string        `json:"imageId,omitempty"`
	Options   image.Options `json:"options"`
}

type Output struct {
	Images         []image.Image `json:"images,omitempty"`
	EnhancedPrompt string        `json:"enhancedPrompt,omitempty"`
	Warning        string        `json:"warning,omitempty"`
	Files          []string      `json:"files,omitempty"`
	Cleared        int           `json:"cleared,omitempty"`
}

type Handler struct {
	sessions   *session.Manager
	pipeline   *pipeline.Pipeline
	exporter   *store.Exporter
	templator  *page.Templator
	feeds      *feed.Generator
	randomizer *prompt.Randomizer
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		sessions:   do.MustInvoke[*session.Manager](i),
		pipeline:   do.MustInvoke[*pipeline.Pipeline](i),
		exporter:   do.MustInvoke[*store.Exporter](i),
		templator:  do.MustInvoke[*page.Templator](i),
		feeds:      do.MustInvoke[*feed.Generator](i),
		randomizer: do.MustInvoke[*prompt.Randomizer](i),
	}, nil
}

// Generate runs the pipeline for a session and appends the results to its
// gallery. Only one generation per session may be in flight.
func (h *Handler) Generate(ctx context.Context, sessionID, raw string, opts image.Options) (Output, error) {
	s := h.sessions.Get(ctx, sessionID)
	if err := s.Begin(); err != nil {
		return Output{}, err
	}
	defer s.End()

	res, err := h.pipeline.Run(ctx, raw, opts)
	if err != nil {
		return Output{}, err
	}
	s.Append(res.Images...)

	log.FromContextOrDiscard(ctx).Info("generated images", "session", sessionID, "count", len(res.Images), "gallery", s.Len())
	return Output{Images: res.Images, EnhancedPrompt: res.EnhancedPrompt, Warning: res.Warning()}, nil
}

// Regenerate re-runs a stored image's prompt and options with a fresh seed.
func (h *Handler) Regenerate(ctx context.Context, sessionID, imageID string) (Output, error) {
	img, err := h.Image(ctx, sessionID, imageID)
	if err != nil {
		return Output{}, err
	}
	return h.Generate(ctx, sessionID, img.Prompt, img.Options.WithoutSeed())
}

func (h *Handler) Images(ctx context.Context, sessionID string) []image.Image {
	return h.sessions.Get(ctx, sessionID).Images()
}

func (h *Handler) Image(ctx context.Context, sessionID, imageID string) (image.Image, error) {
	return h.sessions.Get(ctx, sessionID).Find(imageID)
}

func (h *Handler) Clear(ctx context.Context, sessionID string) int {
	n := h.sessions.Get(ctx, sessionID).Clear()
	log.FromContextOrDiscard(ctx).Info("cleared gallery", "session", sessionID, "cleared", n)
	return n
}

func (h *Handler) Export(ctx context.Context, sessionID, imageID string) (string, error) {
	img, err := h.Image(ctx, sessionID, imageID)
	if err != nil {
		return "", err
	}
	return h.exporter.Export(ctx, img)
}

func (h *Handler) ExportAll(ctx context.Context, sessionID string) ([]string, error) {
	return h.exporter.ExportAll(ctx, h.Images(ctx, sessionID))
}

func (h *Handler) Page(ctx context.Context, sessionID string) ([]byte, error) {
	return h.templator.Template(ctx, page.NewParams(h.randomizer.Randomize(ctx), h.Images(ctx, sessionID)))
}

func (h *Handler) Feed(ctx context.Context, sessionID string, format feed.Format) ([]byte, error) {
	return h.feeds.Generate(ctx, h.Images(ctx, sessionID), format)
}

func (h *Handler) Sample(ctx context.Context) string {
	return h.randomizer.Randomize(ctx)
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("handler").With("session", input.SessionID, "action", input.Action)
	ctx = log.NewContext(ctx, logger)

	// Warm Lambda containers have no background sweeper.
	h.sessions.Sweep(ctx, time.Now())
	logger.Info("handling lambda invocation", "sessions", h.sessions.Len())

	if input.SessionID == "" {
		return Output{}, fmt.Errorf("sessionId is required")
	}

	switch input.Action {
	case "", ActionGenerate:
		return h.Generate(ctx, input.SessionID, input.Prompt, input.Options)
	case ActionRegenerate:
		return h.Regenerate(ctx, input.SessionID, input.ImageID)
	case ActionList:
		return Output{Images: h.Images(ctx, input.SessionID)}, nil
	case ActionClear:
		return Output{Cleared: h.Clear(ctx, input.SessionID)}, nil
	case ActionExport:
		name, err := h.Export(ctx, input.SessionID, input.ImageID)
		if err != nil {
			return Output{}, err
		}
		return Output{Files: []string{name}}, nil
	case ActionExportAll:
		files, err := h.ExportAll(ctx, input.SessionID)
		if err != nil {
			return Output{}, err
		}
		return Output{Files: files}, nil
	default:
		return Output{}, fmt.Errorf("unknown action %q", input.Action)
	}
}

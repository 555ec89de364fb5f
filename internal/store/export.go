package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var unsafeChars = regexp.MustCompile(`(?i)[^a-z0-9]`)

const idSuffixLength = 8

// FileName names an exported image after its timestamp and the tail of its id,
// so images from the same minute get distinct files. A positive index numbers
// the file within a bulk export.
func FileName(img image.Image, index int) string {
	stamp := unsafeChars.ReplaceAllString(img.Timestamp, "-")
	suffix := unsafeChars.ReplaceAllString(strings.TrimPrefix(img.ID, "img_"), "")
	if len(suffix) > idSuffixLength {
		suffix = suffix[len(suffix)-idSuffixLength:]
	}
	if index > 0 {
		return fmt.Sprintf("ai-image-%d-%s-%s.png", index, stamp, suffix)
	}
	return fmt.Sprintf("ai-image-%s-%s.png", stamp, suffix)
}

// Decode returns the raw bytes and sniffed content type of an image.
func Decode(img image.Image) ([]byte, string, error) {
	data, err := base64.StdEncoding.DecodeString(img.ImageData)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image %s: %w", img.ID, err)
	}
	contentType := http.DetectContentType(data)
	return data, lo.Ternary(strings.HasPrefix(contentType, "image/"), contentType, "image/png"), nil
}

type Exporter struct {
	uploader    Uploader
	invalidator Invalidator
	stagger     time.Duration
}

func NewExporter(i *do.Injector) (*Exporter, error) {
	return &Exporter{
		uploader:    do.MustInvoke[Uploader](i),
		invalidator: do.MustInvoke[Invalidator](i),
		stagger:     do.MustInvokeNamed[time.Duration](i, "export_stagger"),
	}, nil
}

func NewExporterWith(uploader Uploader, invalidator Invalidator, stagger time.Duration) *Exporter {
	return &Exporter{uploader: uploader, invalidator: invalidator, stagger: stagger}
}

func (e *Exporter) Export(ctx context.Context, img image.Image) (string, error) {
	name := FileName(img, 0)
	if err := e.upload(ctx, img, name); err != nil {
		return "", err
	}
	if err := e.invalidator.Invalidate(ctx, []string{"/" + name}); err != nil {
		return "", err
	}
	return name, nil
}

// ExportAll exports every image, starting each one a fixed stagger after the
// previous so the destination is not hit all at once.
func (e *Exporter) ExportAll(ctx context.Context, images []image.Image) ([]string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("exporter")
	log.Info("exporting gallery", "count", len(images), "stagger", e.stagger)

	names := make([]string, len(images))
	group, gctx := errgroup.WithContext(ctx)
	for idx, img := range images {
		name := FileName(img, idx+1)
		delay := time.Duration(idx) * e.stagger
		group.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-time.After(delay):
			}
			if err := e.upload(gctx, img, name); err != nil {
				return err
			}
			names[idx] = name
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if len(names) > 0 {
		paths := lo.Map(names, func(n string, _ int) string { return "/" + n })
		if err := e.invalidator.Invalidate(ctx, paths); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func (e *Exporter) upload(ctx context.Context, img image.Image, name string) error {
	data, contentType, err := Decode(img)
	if err != nil {
		return err
	}
	return e.uploader.Upload(ctx, UploadParams{
		Name:        name,
		Data:        data,
		ContentType: contentType,
		Metadata: map[string]string{
			"id":           img.ID,
			"style":        img.Options.StyleOrDefault(),
			"aspect-ratio": img.Options.AspectRatioOrDefault(),
			"size":         img.Options.SizeOrDefault(),
		},
	})
}

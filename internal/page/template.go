package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"sync"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

//go:embed assets/gallery.html
var galleryTmpl string

const excerptLength = 100

type Card struct {
	ID          string
	ContentType string
	Data        template.URL
	Timestamp   string
	Style       string
	Prompt      string
	Excerpt     string
}

type Params struct {
	Sample string
	Images []Card
}

func NewParams(sample string, images []image.Image) Params {
	return Params{
		Sample: sample,
		Images: lo.Map(images, func(img image.Image, _ int) Card {
			return Card{
				ID:          img.ID,
				ContentType: "image/png",
				Data:        template.URL(img.ImageData),
				Timestamp:   img.Timestamp,
				Style:       lo.CoalesceOrEmpty(img.Options.Style, "Default"),
				Prompt:      img.Prompt,
				Excerpt:     Excerpt(img.Prompt, excerptLength),
			}
		}),
	}
}

// Excerpt shortens s to at most n characters, marking the cut with "...".
func Excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func NewTemplator(*do.Injector) (*Templator, error) {
	return &Templator{}, nil
}

func (g *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("gallery").Parse(galleryTmpl))
	})

	log := log.FromContextOrDiscard(ctx).WithGroup("templator")
	log.Info("generating page", "images", len(params.Images))

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}

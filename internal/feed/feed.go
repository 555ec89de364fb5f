package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
)

type Format string

const (
	RSS  Format = "rss"
	Atom Format = "atom"
)

type Generator struct {
	baseURL string
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return &Generator{baseURL: do.MustInvokeNamed[string](i, "public_url")}, nil
}

func NewGeneratorFor(baseURL string) *Generator {
	return &Generator{baseURL: baseURL}
}

// Generate renders the gallery newest first.
func (g *Generator) Generate(ctx context.Context, images []image.Image, format Format) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed")
	log.Info("generating feed", "format", format, "images", len(images))

	feed := feeds.Feed{
		Title:       "AI Image Generator",
		Description: "Images generated in this session",
		Link:        &feeds.Link{Href: g.baseURL + "/"},
		Updated:     time.Now(),
	}

	for _, img := range images {
		link := fmt.Sprintf("%s/api/images/%s/download", g.baseURL, img.ID)
		feed.Add(&feeds.Item{
			Id:          img.ID,
			Title:       img.Prompt,
			Description: fmt.Sprintf("%s, %s, %s", img.Options.StyleOrDefault(), img.Options.AspectRatioOrDefault(), img.Options.SizeOrDefault()),
			Link:        &feeds.Link{Href: link},
			Enclosure:   &feeds.Enclosure{Url: link, Type: "image/png", Length: fmt.Sprint(len(img.ImageData) * 3 / 4)},
			Created:     img.CreatedAt,
			Updated:     img.CreatedAt,
		})
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Created.After(b.Created)
	})

	var out string
	var err error
	switch format {
	case Atom:
		out, err = feed.ToAtom()
	case RSS:
		out, err = feed.ToRss()
	default:
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
	return []byte(out), err
}

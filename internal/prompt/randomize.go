package prompt

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var defaultSamples = []string{
	"A mystical forest with ancient trees and glowing mushrooms, ethereal lighting, fantasy art style",
	"A futuristic city skyline at night with flying cars and neon lights, cyberpunk aesthetic",
	"A serene beach sunset with dramatic clouds and reflections, photorealistic, 8k quality",
	"A majestic dragon perched on a mountain peak, epic fantasy art, detailed scales",
	"A cozy coffee shop interior with warm lighting and people working on laptops",
	"An abstract geometric pattern with vibrant colors and flowing shapes",
}

// Randomizer hands out sample prompts for inspiration.
type Randomizer struct {
	prompts []string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts := do.MustInvokeNamed[[]string](i, "sample_prompts")
	return NewRandomizerFrom(prompts, time.Now().UTC().UnixNano()), nil
}

func NewRandomizerFrom(prompts []string, seed int64) *Randomizer {
	prompts = lo.Filter(lo.Map(prompts, func(p string, _ int) string {
		return strings.TrimSpace(p)
	}), func(p string, _ int) bool {
		return p != ""
	})
	if len(prompts) == 0 {
		prompts = defaultSamples
	}
	return &Randomizer{prompts: prompts, rnd: rand.New(rand.NewSource(seed))}
}

func (r *Randomizer) Randomize(ctx context.Context) string {
	log.FromContextOrDiscard(ctx).WithGroup("randomizer").Debug("picking sample prompt")

	r.mu.Lock()
	idx := r.rnd.Intn(len(r.prompts))
	r.mu.Unlock()

	return r.prompts[idx]
}

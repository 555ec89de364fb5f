package image

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"
)

const (
	DefaultSize        = "1024x1024"
	DefaultAspectRatio = "1:1"
	DefaultStyle       = "photorealistic"
)

// Options are the user-selected generation settings. Pointer fields are
// optional and only forwarded upstream when set.
type Options struct {
	Size           string   `json:"size,omitempty"`
	AspectRatio    string   `json:"aspectRatio,omitempty"`
	Style          string   `json:"style,omitempty"`
	NegativePrompt *string  `json:"negativePrompt,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	Guidance       *float64 `json:"guidance,omitempty"`
	NumImages      int      `json:"numImages"`
}

func DefaultOptions() Options {
	return Options{NumImages: 1}
}

// UnmarshalJSON accepts numbers or numeric strings for seed, guidance and
// numImages, since HTML forms post everything as strings. Empty strings mean
// the field was left blank.
func (o *Options) UnmarshalJSON(data []byte) error {
	var raw struct {
		Size           string `json:"size"`
		AspectRatio    string `json:"aspectRatio"`
		Style          string `json:"style"`
		NegativePrompt string `json:"negativePrompt"`
		Seed           any    `json:"seed"`
		Guidance       any    `json:"guidance"`
		NumImages      any    `json:"numImages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Options{
		Size:           raw.Size,
		AspectRatio:    raw.AspectRatio,
		Style:          raw.Style,
		NegativePrompt: lo.EmptyableToPtr(raw.NegativePrompt),
		NumImages:      1,
	}

	if !blank(raw.Seed) {
		seed, err := toInt64(raw.Seed)
		if err != nil {
			return fmt.Errorf("invalid seed %v: %w", raw.Seed, err)
		}
		out.Seed = &seed
	}

	if !blank(raw.Guidance) {
		guidance, err := cast.ToFloat64E(raw.Guidance)
		if err != nil {
			return fmt.Errorf("invalid guidance %v: %w", raw.Guidance, err)
		}
		out.Guidance = &guidance
	}

	if !blank(raw.NumImages) {
		n, err := toInt64(raw.NumImages)
		if err != nil {
			return fmt.Errorf("invalid numImages %v: %w", raw.NumImages, err)
		}
		out.NumImages = lo.Ternary(n > 0, int(n), 1)
	}

	*o = out
	return nil
}

var leadingInt = regexp.MustCompile(`^[+-]?[0-9]+`)

// toInt64 reads strings as decimal, ignoring anything after the leading
// digits, so "010" is 10 and "12px" is 12. Other values go through cast.
func toInt64(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return cast.ToInt64E(v)
	}
	digits := leadingInt.FindString(strings.TrimSpace(s))
	if digits == "" {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return strconv.ParseInt(digits, 10, 64)
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// SampleCount is the number of images requested, never less than one.
func (o Options) SampleCount() int {
	return lo.Ternary(o.NumImages > 0, o.NumImages, 1)
}

func (o Options) SizeOrDefault() string {
	return lo.CoalesceOrEmpty(o.Size, DefaultSize)
}

func (o Options) AspectRatioOrDefault() string {
	return lo.CoalesceOrEmpty(o.AspectRatio, DefaultAspectRatio)
}

func (o Options) StyleOrDefault() string {
	return lo.CoalesceOrEmpty(o.Style, DefaultStyle)
}

// WithoutSeed returns a copy with the seed cleared, used when generating a
// new variation of an existing image.
func (o Options) WithoutSeed() Options {
	o.Seed = nil
	return o
}

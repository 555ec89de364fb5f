package prompt_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmorgan81/imagegen/internal/prompt"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "empty", raw: "", wantErr: true},
		{name: "too short", raw: "cat", wantErr: true},
		{name: "nine chars", raw: "123456789", wantErr: true},
		{name: "padding does not count", raw: "   123456789   ", wantErr: true},
		{name: "exactly ten", raw: "1234567890", want: "1234567890"},
		{name: "trimmed", raw: "\n  A mystical forest with glowing mushrooms \t", want: "A mystical forest with glowing mushrooms"},
		{name: "multibyte counts runes", raw: "夜の森と光るキノコの絵画", want: "夜の森と光るキノコの絵画"},
		{name: "multibyte too short", raw: "光るキノコ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := prompt.Validate(tt.raw)
			if tt.wantErr {
				var verr *prompt.ValidationError
				require.True(t, errors.As(err, &verr))
				require.Contains(t, err.Error(), "minimum 10 characters")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidateLengthBoundary(t *testing.T) {
	for n := 0; n < 20; n++ {
		raw := " " + strings.Repeat("a", n) + " "
		got, err := prompt.Validate(raw)
		if n < prompt.MinLength {
			require.Error(t, err, "length %d", n)
			continue
		}
		require.NoError(t, err, "length %d", n)
		require.Equal(t, strings.Repeat("a", n), got)
	}
}

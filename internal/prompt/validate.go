package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const MinLength = 10

type ValidationError struct {
	Length int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Please provide a detailed prompt (minimum %d characters)", MinLength)
}

// Validate trims raw and rejects it when fewer than MinLength characters remain.
func Validate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(trimmed); n < MinLength {
		return "", &ValidationError{Length: n}
	}
	return trimmed, nil
}

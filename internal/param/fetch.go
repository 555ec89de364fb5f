package param

import (
	"context"
	"fmt"
	"os"
	"strings"
)

type Fetcher interface {
	Fetch(context.Context, string) (string, error)
	FetchAll(context.Context, string) ([]string, error)
}

// EnvFetcher reads parameters from environment variables. FetchAll splits
// the value on "|" and treats an unset variable as an empty list.
type EnvFetcher struct{}

func (EnvFetcher) Fetch(_ context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return value, nil
}

func (EnvFetcher) FetchAll(_ context.Context, name string) ([]string, error) {
	value := os.Getenv(name)
	if value == "" {
		return nil, nil
	}
	return strings.Split(value, "|"), nil
}

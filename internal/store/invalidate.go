package store

import (
	"context"
)

type Invalidator interface {
	Invalidate(context.Context, []string) error
}

// NoopInvalidator is used when exports are not fronted by a CDN.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(context.Context, []string) error {
	return nil
}

// Package enrich looks up artist biographies and images from an external catalogue.
package enrich

import (
	"context"
	"errors"
)

var ErrArtistNotFound = errors.New("artist not found")

var ErrNotConfigured = errors.New("artist enrichment is not configured")

type Profile struct {
	Name     string
	ImageURL string
	Bio      string
}

type Enricher interface {
	Lookup(ctx context.Context, name string) (Profile, error)
}

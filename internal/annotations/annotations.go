package annotations

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathoscope/wsiview/pkg/core"
)

// ErrUnknownSource is returned by New for an unrecognised source type.
var ErrUnknownSource = errors.New("unknown annotation source")

// Source supplies the markers and tumor areas drawn over a slide.
type Source interface {
	Markers(ctx context.Context) ([]core.Marker, error)
	TumorAreas(ctx context.Context) ([]core.TumorArea, error)
	Close() error
}

// Set is one slide's full annotation payload.
type Set struct {
	Markers    []core.Marker
	TumorAreas []core.TumorArea
}

// Load reads both collections from src.
func Load(ctx context.Context, src Source) (Set, error) {
	markers, err := src.Markers(ctx)
	if err != nil {
		return Set{}, fmt.Errorf("loading markers: %w", err)
	}
	areas, err := src.TumorAreas(ctx)
	if err != nil {
		return Set{}, fmt.Errorf("loading tumor areas: %w", err)
	}
	return Set{Markers: markers, TumorAreas: areas}, nil
}

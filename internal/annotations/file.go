package annotations

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pathoscope/wsiview/pkg/core"
)

// FileSource reads annotations from JSON exports on disk. Paths ending in
// .gz are decompressed. An empty path yields an empty collection.
type FileSource struct {
	MarkersPath    string
	TumorAreasPath string
}

// NewFileSource creates a FileSource.
func NewFileSource(markersPath, tumorAreasPath string) *FileSource {
	return &FileSource{MarkersPath: markersPath, TumorAreasPath: tumorAreasPath}
}

func (s *FileSource) Markers(_ context.Context) ([]core.Marker, error) {
	var markers []core.Marker
	if err := readJSON(s.MarkersPath, &markers); err != nil {
		return nil, err
	}
	return markers, nil
}

func (s *FileSource) TumorAreas(_ context.Context) ([]core.TumorArea, error) {
	var areas []core.TumorArea
	if err := readJSON(s.TumorAreasPath, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

func (s *FileSource) Close() error { return nil }

func readJSON(path string, out any) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

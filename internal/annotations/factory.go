// internal/annotations/factory.go
package annotations

import (
	"fmt"

	"github.com/pathoscope/wsiview/internal/annotations/sqlstore"
	"github.com/pathoscope/wsiview/internal/config"
)

// New creates an annotation source based on configuration
func New(cfg config.AnnotationConfig) (Source, error) {
	switch cfg.Type {
	case "json", "":
		return NewFileSource(cfg.MarkersPath, cfg.TumorAreasPath), nil
	case "sqlite":
		store, err := sqlstore.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := sqlstore.OpenPostgres(cfg.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, cfg.Type)
	}
}

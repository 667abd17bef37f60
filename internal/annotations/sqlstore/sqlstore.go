// Package sqlstore reads slide annotations from a SQL database through GORM.
// SQLite and Postgres share one schema; polygons are stored as JSON.
package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/pathoscope/wsiview/internal/geo"
	"github.com/pathoscope/wsiview/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MarkerRow is the persisted form of a core.Marker.
type MarkerRow struct {
	ID     string  `gorm:"primaryKey;size:128"`
	Kind   string  `gorm:"size:16;index:idx_marker_kind"`
	X      float64 `gorm:"not null"`
	Y      float64 `gorm:"not null"`
	Width  float64
	Height float64
	Label  string `gorm:"size:256"`
	Seq    int    `gorm:"index:idx_marker_seq"`
}

func (*MarkerRow) TableName() string {
	return "markers"
}

// TumorAreaRow is the persisted form of a core.TumorArea.
type TumorAreaRow struct {
	ID      string         `gorm:"primaryKey;size:128"`
	Label   string         `gorm:"size:256"`
	Polygon datatypes.JSON `gorm:"not null"` // [[x,y],...]
	Seq     int            `gorm:"index:idx_tumor_area_seq"`
}

func (*TumorAreaRow) TableName() string {
	return "tumor_areas"
}

// Models lists every table the store migrates.
var Models = []any{&MarkerRow{}, &TumorAreaRow{}}

// Store implements annotation reads on top of a *gorm.DB.
type Store struct {
	db *gorm.DB
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("failed to migrate annotation schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenSQLite opens (creating if needed) a SQLite annotation database.
// An empty path opens a private in-memory database.
func OpenSQLite(path string) (*Store, error) {
	inMemory := path == ""
	if inMemory {
		path = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	if inMemory {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// OpenPostgres connects to a Postgres annotation database.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	return New(db)
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// Markers returns every marker in insertion order.
func (s *Store) Markers(ctx context.Context) ([]core.Marker, error) {
	var rows []MarkerRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query markers: %w", err)
	}
	markers := make([]core.Marker, 0, len(rows))
	for _, r := range rows {
		markers = append(markers, markerFromRow(r))
	}
	return markers, nil
}

// TumorAreas returns every tumor area in insertion order.
func (s *Store) TumorAreas(ctx context.Context) ([]core.TumorArea, error) {
	var rows []TumorAreaRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query tumor areas: %w", err)
	}
	areas := make([]core.TumorArea, 0, len(rows))
	for _, r := range rows {
		polygon, err := geo.ParsePolygon(string(r.Polygon))
		if err != nil {
			return nil, fmt.Errorf("tumor area %s: %w", r.ID, err)
		}
		areas = append(areas, core.TumorArea{ID: r.ID, Label: r.Label, Polygon: polygon})
	}
	return areas, nil
}

// Import replaces the stored annotations with the given collections.
func (s *Store) Import(ctx context.Context, markers []core.Marker, areas []core.TumorArea) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&MarkerRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear markers: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&TumorAreaRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear tumor areas: %w", err)
		}

		if len(markers) > 0 {
			rows := make([]MarkerRow, len(markers))
			for i, m := range markers {
				rows[i] = markerToRow(m, i)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to insert markers: %w", err)
			}
		}

		if len(areas) > 0 {
			rows := make([]TumorAreaRow, len(areas))
			for i, a := range areas {
				polygon, err := json.Marshal(a.Polygon)
				if err != nil {
					return fmt.Errorf("tumor area %s: %w", a.ID, err)
				}
				rows[i] = TumorAreaRow{ID: a.ID, Label: a.Label, Polygon: datatypes.JSON(polygon), Seq: i}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to insert tumor areas: %w", err)
			}
		}
		return nil
	})
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func markerToRow(m core.Marker, seq int) MarkerRow {
	return MarkerRow{
		ID: m.ID, Kind: string(m.Kind),
		X: m.X, Y: m.Y, Width: m.Width, Height: m.Height,
		Label: m.Label, Seq: seq,
	}
}

func markerFromRow(r MarkerRow) core.Marker {
	if core.MarkerKind(r.Kind) == core.MarkerBox {
		return core.NewBoxMarker(r.ID, r.X, r.Y, r.Width, r.Height, r.Label)
	}
	return core.NewPointMarker(r.ID, r.X, r.Y, r.Label)
}

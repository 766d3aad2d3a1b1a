package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"go-image-enricher/pkg/models"
)

// Document is a record that a queue message points at. The enrichment columns start empty and
// are filled in when the image named by BlobName is processed.
type Document struct {
	ID       string `gorm:"primaryKey;size:64"`
	BlobName string `gorm:"size:1024"`

	OCRText               string `gorm:"column:ocr_txt"`
	HasHighVoltageSign    bool
	HasLiveElectricalSign bool
	HasLiveWiresSign      bool
	Tags                  string
	DominantColours       string
	AccentColour          string
	IsOnFire              bool
	ContainsTransformer   bool
	ContainsPole          bool
	EXIFCaptureDate       string `gorm:"column:exif_capture_date"`
	EXIFCaptureTime       string `gorm:"column:exif_capture_time"`
	EXIFLatitude          string `gorm:"column:exif_lat_gps"`
	EXIFLongitude         string `gorm:"column:exif_long_gps"`

	EnrichedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Metadata returns the enrichment columns as an ImageMetadata value.
func (d Document) Metadata() models.ImageMetadata {
	return models.ImageMetadata{
		OCRText:               d.OCRText,
		HasHighVoltageSign:    d.HasHighVoltageSign,
		HasLiveElectricalSign: d.HasLiveElectricalSign,
		HasLiveWiresSign:      d.HasLiveWiresSign,
		Tags:                  d.Tags,
		DominantColours:       d.DominantColours,
		AccentColour:          d.AccentColour,
		IsOnFire:              d.IsOnFire,
		ContainsTransformer:   d.ContainsTransformer,
		ContainsPole:          d.ContainsPole,
		EXIFCaptureDate:       d.EXIFCaptureDate,
		EXIFCaptureTime:       d.EXIFCaptureTime,
		EXIFLatitude:          d.EXIFLatitude,
		EXIFLongitude:         d.EXIFLongitude,
	}
}

// OpenSQLite opens the document database at path and migrates the schema.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

type gormDocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a document repository over an open database
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &gormDocumentRepository{db: db}
}

func (r *gormDocumentRepository) Create(ctx context.Context, doc *Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *gormDocumentRepository) Get(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *gormDocumentRepository) UpdateMetadata(ctx context.Context, id string, md models.ImageMetadata) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(map[string]any{
		"ocr_txt":                  md.OCRText,
		"has_high_voltage_sign":    md.HasHighVoltageSign,
		"has_live_electrical_sign": md.HasLiveElectricalSign,
		"has_live_wires_sign":      md.HasLiveWiresSign,
		"tags":                     md.Tags,
		"dominant_colours":         md.DominantColours,
		"accent_colour":            md.AccentColour,
		"is_on_fire":               md.IsOnFire,
		"contains_transformer":     md.ContainsTransformer,
		"contains_pole":            md.ContainsPole,
		"exif_capture_date":        md.EXIFCaptureDate,
		"exif_capture_time":        md.EXIFCaptureTime,
		"exif_lat_gps":             md.EXIFLatitude,
		"exif_long_gps":            md.EXIFLongitude,
		"enriched_at":              &now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

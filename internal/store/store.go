// Package store persists printer configurations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"printer-service/internal/model"
)

// DocumentVersion is the interchange format version written on export
const DocumentVersion = "1.0"

var ErrClosed = errors.New("config store is not open")

// ConfigStore owns the persisted printer records. Records keep insertion order.
type ConfigStore interface {
	Open(ctx context.Context) error
	Close() error

	LoadAll(ctx context.Context) ([]model.PrinterConfig, error)
	Save(ctx context.Context, cfg model.PrinterConfig) error
	Delete(ctx context.Context, id string) error

	DefaultID(ctx context.Context) (string, error)
	SetDefaultID(ctx context.Context, id string) error
	LastUpdated(ctx context.Context) (time.Time, error)

	// Replace swaps the whole content in one transaction
	Replace(ctx context.Context, configs []model.PrinterConfig, defaultID string) error
}

// Document is the JSON export and import format
type Document struct {
	Version         string                `json:"version"`
	ExportDate      *time.Time            `json:"exportDate,omitempty"`
	LastUpdated     time.Time             `json:"lastUpdated"`
	DefaultConfigID string                `json:"defaultConfigId,omitempty"`
	Configurations  []model.PrinterConfig `json:"configurations"`
}

// Export snapshots the store into a Document stamped with now
func Export(ctx context.Context, s ConfigStore, now time.Time) (Document, error) {
	configs, err := s.LoadAll(ctx)
	if err != nil {
		return Document{}, err
	}
	defaultID, err := s.DefaultID(ctx)
	if err != nil {
		return Document{}, err
	}
	lastUpdated, err := s.LastUpdated(ctx)
	if err != nil {
		return Document{}, err
	}
	if lastUpdated.IsZero() {
		lastUpdated = now
	}

	exported := now.UTC()
	for i := range configs {
		configs[i].IsDefault = configs[i].ID == defaultID
	}
	return Document{
		Version:         DocumentVersion,
		ExportDate:      &exported,
		LastUpdated:     lastUpdated.UTC(),
		DefaultConfigID: defaultID,
		Configurations:  configs,
	}, nil
}

// Encode renders the document as indented JSON
func (d Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// DecodeDocument parses an interchange document
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("invalid configuration document: %w", err)
	}
	if doc.Configurations == nil {
		doc.Configurations = []model.PrinterConfig{}
	}
	return doc, nil
}

// Normalize validates every record and settles the default. It fails on the
// first invalid or duplicate record. A stated default that is absent is
// replaced by the first flagged record, else the first record.
func (d Document) Normalize(validate func(model.PrinterConfig) error) (Document, error) {
	seen := make(map[string]bool, len(d.Configurations))
	for i, cfg := range d.Configurations {
		if seen[cfg.ID] {
			return Document{}, model.NewError(model.ErrCodeInvalidConfig, cfg.ID,
				fmt.Sprintf("duplicate configuration at index %d", i), nil)
		}
		seen[cfg.ID] = true

		if validate == nil {
			continue
		}
		if err := validate(cfg); err != nil {
			return Document{}, model.NewError(model.ErrCodeInvalidConfig, cfg.ID,
				fmt.Sprintf("invalid configuration at index %d", i), err)
		}
	}

	normalized := d
	normalized.Configurations = make([]model.PrinterConfig, len(d.Configurations))
	copy(normalized.Configurations, d.Configurations)

	if !seen[normalized.DefaultConfigID] {
		normalized.DefaultConfigID = ""
		for _, cfg := range normalized.Configurations {
			if cfg.IsDefault {
				normalized.DefaultConfigID = cfg.ID
				break
			}
		}
		if normalized.DefaultConfigID == "" && len(normalized.Configurations) > 0 {
			normalized.DefaultConfigID = normalized.Configurations[0].ID
		}
	}

	for i := range normalized.Configurations {
		normalized.Configurations[i].IsDefault = normalized.Configurations[i].ID == normalized.DefaultConfigID
	}
	return normalized, nil
}

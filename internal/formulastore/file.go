package formulastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"formulary/internal/fileutil"
)

// LoadFile reads the workspace store. A missing file yields an empty store.
func LoadFile(path string) (*Store, error) {
	store := NewStore()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("read formulas: %w", err)
	}
	var records []Formula
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := store.ReplaceAll(records); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return store, nil
}

// SaveFile writes the store as an indented JSON array.
func SaveFile(path string, store *Store) error {
	records := store.All()
	if records == nil {
		records = []Formula{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode formulas: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write formulas: %w", err)
	}
	return nil
}

package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadSequences reads a JSON array of sequences and validates each one.
func LoadSequences(path string) ([]Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequences: %w", err)
	}

	var seqs []Sequence
	if err := json.Unmarshal(data, &seqs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sequences from %s: %w", path, err)
	}

	for i := range seqs {
		if err := seqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid sequence %d in %s: %w", i, path, err)
		}
	}
	return seqs, nil
}

// SaveSequences writes sequences as a JSON array, replacing path atomically.
func SaveSequences(path string, seqs []Sequence) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(seqs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sequences: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Package fileio persists one Config as a single UTF-8 JSON document. Both
// directions run the full Sanitize pass, so any document written by a
// previous version loads unchanged after normalization and a load/save
// round-trips.
package fileio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jacob-jarick/Falculator/internal/logging"
	"github.com/jacob-jarick/Falculator/internal/model"
)

// Load reads and sanitizes a config document. A missing file yields the
// default config (one synthesized main savings item) rather than an error.
func Load(path string, log *logging.Logger) (*model.Config, *model.Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := model.DefaultConfig()
		rep := cfg.Sanitize(log)
		return cfg, rep, rep.Err()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	var cfg model.Config
	cfg.MainSavingsIdx = -1
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	rep := cfg.Sanitize(log)
	return &cfg, rep, rep.Err()
}

// Save sanitizes and writes the config atomically: temp file in the target
// directory, then rename.
func Save(cfg *model.Config, path string, log *logging.Logger) error {
	if rep := cfg.Sanitize(log); rep.Err() != nil {
		return fmt.Errorf("config not writable: %w", rep.Err())
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".falculator-*.json")
	if err != nil {
		return fmt.Errorf("stage config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

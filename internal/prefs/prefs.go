// Package prefs loads and saves the workstation preferences file.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"annotix/pkg/spec"
)

// Prefs are the user-tunable settings. Zero values are filled from Default
// on load so a sparse file keeps working after new fields are added.
type Prefs struct {
	Annotator       string  `toml:"annotator"`
	IntrusionMarker string  `toml:"intrusion_marker"`
	ForcedListen    bool    `toml:"forced_listen"`
	ChunkSeconds    int     `toml:"chunk_seconds"`
	PreRollSeconds  float64 `toml:"preroll_seconds"`
	MinBandHz       float64 `toml:"min_band_hz"`
	MaxBandHz       float64 `toml:"max_band_hz"`
	Loudness        float64 `toml:"loudness"`
}

func Default() Prefs {
	return Prefs{
		Annotator:       "Unknown",
		IntrusionMarker: spec.DefaultIntrusionMarker,
		ChunkSeconds:    spec.ChunkSizeSeconds,
		PreRollSeconds:  spec.PreRollSeconds,
		MinBandHz:       spec.DefaultMinBandHz,
		MaxBandHz:       spec.DefaultMaxBandHz,
	}
}

// Load reads the preferences at path. A missing file is not an error, the
// defaults apply; a malformed file is.
func Load(path string) (Prefs, error) {
	p := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Default(), fmt.Errorf("parse preferences %s: %w", path, err)
	}
	if p.Annotator == "" {
		p.Annotator = "Unknown"
	}
	if p.IntrusionMarker == "" {
		p.IntrusionMarker = spec.DefaultIntrusionMarker
	}
	if p.ChunkSeconds <= 0 {
		p.ChunkSeconds = spec.ChunkSizeSeconds
	}
	if p.PreRollSeconds <= 0 {
		p.PreRollSeconds = spec.PreRollSeconds
	}
	if p.MinBandHz <= 0 {
		p.MinBandHz = spec.DefaultMinBandHz
	}
	if p.MaxBandHz <= 0 {
		p.MaxBandHz = spec.DefaultMaxBandHz
	}
	return p, nil
}

// Save writes the preferences, creating the parent directory if needed.
func (p Prefs) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return nil
}

// DefaultPath is the per-user preferences location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "annotix.toml"
	}
	return filepath.Join(dir, "annotix", "prefs.toml")
}

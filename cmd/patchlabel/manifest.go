package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"patchlabel/internal/models"
)

const manifestName = "manifest.yaml"

// Manifest records where every patch of a tiling run came from, so per-patch
// results can be placed back into image coordinates.
type Manifest struct {
	RunID     string          `yaml:"runId"`
	Created   time.Time       `yaml:"created"`
	PatchSize int             `yaml:"patchSize"`
	Stride    int             `yaml:"stride"`
	Images    []ManifestImage `yaml:"images"`
}

// ManifestImage is one tiled source image
type ManifestImage struct {
	ID      string          `yaml:"id"`
	Path    string          `yaml:"path"`
	Height  int             `yaml:"height"`
	Width   int             `yaml:"width"`
	Patches []ManifestPatch `yaml:"patches"`
}

// ManifestPatch is one patch file. Label is set when it was derived from a mask.
type ManifestPatch struct {
	File     string          `yaml:"file"`
	Position models.Position `yaml:"position"`
	Label    []int           `yaml:"label,flow,omitempty"`
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %q", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %q", path)
	}
	return &m, nil
}

func saveManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshaling manifest")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %q", path)
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "writing manifest %q", path)
}

func labelToInts(lv models.LabelVector) []int {
	return []int{int(lv[0]), int(lv[1]), int(lv[2])}
}

func labelFromInts(values []int) (models.LabelVector, error) {
	var lv models.LabelVector
	if len(values) != models.NumClasses {
		return lv, errors.Errorf("label has %d entries, expected %d", len(values), models.NumClasses)
	}
	for c, v := range values {
		if v != 0 && v != 1 {
			return lv, errors.Errorf("label entry %d is %d, expected 0 or 1", c, v)
		}
		lv[c] = uint8(v)
	}
	return lv, nil
}

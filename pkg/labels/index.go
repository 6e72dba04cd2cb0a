package labels

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"patchlabel/internal/models"
)

// Index maps a file id to its label vector. It is stored next to the images
// as a YAML sidecar, so labels never depend on how files are named.
type Index struct {
	entries map[string]models.LabelVector
}

// indexFile is the on-disk layout of an Index.
type indexFile struct {
	Version int              `yaml:"version"`
	Labels  map[string][]int `yaml:"labels"`
}

const indexVersion = 1

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{entries: make(map[string]models.LabelVector)}
}

// Set records the label vector for id, replacing any previous one.
func (ix *Index) Set(id string, lv models.LabelVector) error {
	if !lv.Valid() {
		return errors.Errorf("label vector %v for %q is not binary", lv, id)
	}
	ix.entries[id] = lv
	return nil
}

// Lookup returns the label vector for id.
func (ix *Index) Lookup(id string) (models.LabelVector, bool) {
	lv, ok := ix.entries[id]
	return lv, ok
}

// Len returns the number of entries
func (ix *Index) Len() int {
	return len(ix.entries)
}

// IDs returns all ids in sorted order
func (ix *Index) IDs() []string {
	ids := make([]string, 0, len(ix.entries))
	for id := range ix.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadIndex reads an index from a YAML file.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading label index %q", path)
	}
	var f indexFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing label index %q", path)
	}
	if f.Version != indexVersion {
		return nil, errors.Errorf("label index %q has version %d, expected %d", path, f.Version, indexVersion)
	}

	ix := NewIndex()
	for id, values := range f.Labels {
		if len(values) != models.NumClasses {
			return nil, errors.Errorf("label index %q: %q has %d entries, expected %d",
				path, id, len(values), models.NumClasses)
		}
		var lv models.LabelVector
		for c, v := range values {
			if v != 0 && v != 1 {
				return nil, errors.Errorf("label index %q: %q has non-binary value %d", path, id, v)
			}
			lv[c] = uint8(v)
		}
		ix.entries[id] = lv
	}
	return ix, nil
}

// SaveIndex writes the index as YAML, creating the parent directory if needed.
func SaveIndex(ix *Index, path string) error {
	f := indexFile{Version: indexVersion, Labels: make(map[string][]int, len(ix.entries))}
	for id, lv := range ix.entries {
		f.Labels[id] = []int{int(lv[0]), int(lv[1]), int(lv[2])}
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return errors.Wrap(err, "marshaling label index")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %q", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing label index %q", path)
	}
	return nil
}

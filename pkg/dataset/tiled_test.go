package dataset

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchlabel/internal/models"
	"patchlabel/pkg/imageio"
	"patchlabel/pkg/labels"
	"patchlabel/pkg/tiling"
)

func TestTiledPositions(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "big.png"), 12, 12)

	td, err := NewTiled(Options{Sources: []Source{{Dir: dir}}, Grayscale: true}, 6, 6)
	require.NoError(t, err)
	require.Equal(t, 1, td.Len())

	s, err := td.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "big.png", s.ID)
	assert.Equal(t, 12, s.Height)
	assert.Nil(t, s.Labels)

	var got []models.Position
	for _, p := range s.Patches {
		got = append(got, p.Position)
	}
	assert.Equal(t, []models.Position{{Row: 0, Col: 0}, {Row: 0, Col: 6}, {Row: 6, Col: 0}, {Row: 6, Col: 6}}, got)
}

func TestTiledPatchLabelsAndTransform(t *testing.T) {
	dir := t.TempDir()
	img, masks := filepath.Join(dir, "img"), filepath.Join(dir, "mask")
	writeImage(t, filepath.Join(img, "m.png"), 8, 8)
	// class 2 only in the bottom-right corner pixel
	writeMask(t, filepath.Join(masks, "m.png"), 8, 8, 0, map[int]uint8{63: 2})

	td, err := NewTiled(Options{
		Sources:   []Source{{Dir: img, MaskDir: masks}},
		Labeler:   labels.PresenceLabeler{},
		Grayscale: true,
		Transform: imageio.Resize(2),
	}, 4, 4)
	require.NoError(t, err)

	s, err := td.Get(0)
	require.NoError(t, err)
	require.Len(t, s.Patches, 4)
	require.Len(t, s.Labels, 4)
	for i, lv := range s.Labels {
		if i == 3 {
			assert.Equal(t, models.LabelVector{1, 0, 1}, lv)
		} else {
			assert.Equal(t, models.LabelVector{1, 0, 0}, lv)
		}
		assert.Equal(t, 2, s.Patches[i].Image.Width)
	}
}

func TestTiledThresholdPerPatch(t *testing.T) {
	dir := t.TempDir()
	img, masks := filepath.Join(dir, "img"), filepath.Join(dir, "mask")
	writeImage(t, filepath.Join(img, "big.png"), 112, 112)
	writeMask(t, filepath.Join(masks, "big.png"), 112, 112, 1, nil)

	// a 56x56 patch holds 3136 pixels, far below the image-level default
	_, err := NewTiled(Options{
		Sources: []Source{{Dir: img, MaskDir: masks}},
		Labeler: labels.ThresholdLabeler{Pixels: labels.DefaultThresholdPixels},
	}, 56, 28)
	assert.True(t, errors.Is(err, tiling.ErrInvalidParameter), "got %v", err)

	_, err = NewTiled(Options{
		Sources: []Source{{Dir: img, MaskDir: masks, Labeler: labels.ThresholdLabeler{Pixels: 56 * 56}}},
		Labeler: labels.PresenceLabeler{},
	}, 56, 28)
	assert.True(t, errors.Is(err, tiling.ErrInvalidParameter), "got %v", err)

	td, err := NewTiled(Options{
		Sources:   []Source{{Dir: img, MaskDir: masks}},
		Labeler:   labels.ThresholdLabeler{Pixels: 1000},
		Grayscale: true,
	}, 56, 28)
	require.NoError(t, err)
	s, err := td.Get(0)
	require.NoError(t, err)
	require.Len(t, s.Labels, 9)
	for _, lv := range s.Labels {
		assert.Equal(t, models.LabelVector{0, 1, 0}, lv)
	}
}

func TestTiledMixedSourceLabelers(t *testing.T) {
	dir := t.TempDir()
	small, smallMasks := filepath.Join(dir, "img"), filepath.Join(dir, "mask")
	big, bigMasks := filepath.Join(dir, "bigimg"), filepath.Join(dir, "bigmask")
	writeImage(t, filepath.Join(small, "s.png"), 4, 4)
	writeMask(t, filepath.Join(smallMasks, "s.png"), 4, 4, 3, map[int]uint8{0: 2})
	writeImage(t, filepath.Join(big, "b.png"), 4, 4)
	writeMask(t, filepath.Join(bigMasks, "b.png"), 4, 4, 3, map[int]uint8{0: 2})

	td, err := NewTiled(Options{
		Sources: []Source{
			{Dir: small, MaskDir: smallMasks},
			{Dir: big, MaskDir: bigMasks, Labeler: labels.ThresholdLabeler{Pixels: 1}},
		},
		Labeler:   labels.PresenceLabeler{},
		Grayscale: true,
	}, 4, 4)
	require.NoError(t, err)

	s, err := td.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []models.LabelVector{{0, 0, 1}}, s.Labels)
	s, err = td.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []models.LabelVector{{0, 0, 0}}, s.Labels)
}

func TestTiledErrors(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "small.png"), 3, 3)
	writeImage(t, filepath.Join(dir, "wide.png"), 3, 9)

	_, err := NewTiled(Options{Sources: []Source{{Dir: dir}}}, 0, 1)
	assert.True(t, errors.Is(err, tiling.ErrInvalidParameter))

	td, err := NewTiled(Options{Sources: []Source{{Dir: dir}}}, 4, 2)
	require.NoError(t, err)
	_, err = td.Get(0)
	assert.True(t, errors.Is(err, tiling.ErrInvalidParameter), "got %v", err)

	skipped, err := td.Each(func(int, TiledSample) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
}

func TestCropMask(t *testing.T) {
	m := models.Mask{Pix: []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8}, Height: 3, Width: 3}
	out := cropMask(m, models.Position{Row: 1, Col: 1}, 2)
	assert.Equal(t, []uint8{4, 5, 7, 8}, out.Pix)
}

package visualization

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"patchlabel/internal/models"
	"patchlabel/pkg/stitch"
)

func TestMapToImageClamps(t *testing.T) {
	m := mat.NewDense(1, 4, []float64{-1, 0, 0.5, 2})
	img := MapToImage(m)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(0), img.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(32767), img.Gray16At(2, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(3, 0).Y)
}

func TestCoverageToImage(t *testing.T) {
	img := CoverageToImage(mat.NewDense(1, 2, []float64{1, 2}))
	assert.Equal(t, uint16(32767), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(1, 0).Y)

	empty := CoverageToImage(mat.NewDense(2, 3, nil))
	assert.Equal(t, 3, empty.Bounds().Dx())
	assert.Equal(t, uint16(0), empty.Gray16At(2, 1).Y)
}

func TestSaveClassMaps(t *testing.T) {
	cm, err := stitch.NewClassMaps(4, 4)
	require.NoError(t, err)
	require.NoError(t, cm.AddLabels(models.Position{}, 4, models.LabelVector{1, 0, 1}))

	dir := filepath.Join(t.TempDir(), "maps")
	require.NoError(t, SaveClassMaps(cm, dir, "slide"))

	for c := 0; c < models.NumClasses; c++ {
		assert.FileExists(t, filepath.Join(dir, fmt.Sprintf("slide_class%d.png", c)))
	}
	assert.FileExists(t, filepath.Join(dir, "slide_coverage.png"))

	img, err := imaging.Open(filepath.Join(dir, "slide_class2.png"))
	require.NoError(t, err)
	r, _, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(65535), r)

	img, err = imaging.Open(filepath.Join(dir, "slide_class1.png"))
	require.NoError(t, err)
	r, _, _, _ = img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0), r)
}

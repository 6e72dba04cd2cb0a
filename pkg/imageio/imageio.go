// Package imageio converts between files, image.Image values and the in-memory
// arrays used by the tiling and labeling packages.
package imageio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"patchlabel/internal/models"
)

// Extensions lists the file extensions treated as images
var Extensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}

// IsImageFile reports whether name has one of Extensions
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadImage decodes the image at path. With grayscale set the result has one
// channel, otherwise three (RGB, alpha dropped).
func LoadImage(path string, grayscale bool) (models.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return models.Image{}, errors.Wrapf(err, "failed to open image %q", path)
	}
	return FromImage(img, grayscale), nil
}

// FromImage converts a decoded image.
func FromImage(img image.Image, grayscale bool) models.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if grayscale {
		out := models.NewImage(height, width, 1)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				out.Pix[y*width+x] = g.Y
			}
		}
		return out
	}

	// imaging.Clone always returns tightly packed NRGBA starting at (0, 0)
	nrgba := imaging.Clone(img)
	out := models.NewImage(height, width, 3)
	for i := 0; i < width*height; i++ {
		copy(out.Pix[i*3:i*3+3], nrgba.Pix[i*4:i*4+3])
	}
	return out
}

// ToImage converts back to an image.Image: *image.Gray for one channel,
// *image.NRGBA for three.
func ToImage(im models.Image) (image.Image, error) {
	if err := im.Validate(); err != nil {
		return nil, err
	}
	switch im.Channels {
	case 1:
		out := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
		copy(out.Pix, im.Pix)
		return out, nil
	case 3:
		out := image.NewNRGBA(image.Rect(0, 0, im.Width, im.Height))
		for i := 0; i < im.Area(); i++ {
			copy(out.Pix[i*4:i*4+3], im.Pix[i*3:i*3+3])
			out.Pix[i*4+3] = 0xff
		}
		return out, nil
	}
	return nil, errors.Errorf("cannot convert image with %d channels", im.Channels)
}

// LoadMask decodes a mask file. Class indices are read without color conversion:
// the palette index for paletted images, the gray level for gray images and the
// red channel otherwise.
func LoadMask(path string) (models.Mask, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return models.Mask{}, errors.Wrapf(err, "failed to open mask %q", path)
	}
	return MaskFromImage(img), nil
}

// MaskFromImage extracts class indices from a decoded mask image.
func MaskFromImage(img image.Image) models.Mask {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	mask := models.NewMask(height, width)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px, py := bounds.Min.X+x, bounds.Min.Y+y
			var v uint8
			switch m := img.(type) {
			case *image.Paletted:
				v = m.ColorIndexAt(px, py)
			case *image.Gray:
				v = m.GrayAt(px, py).Y
			default:
				r, _, _, _ := img.At(px, py).RGBA()
				v = uint8(r >> 8)
			}
			mask.Pix[y*width+x] = v
		}
	}
	return mask
}

// MaskToImage encodes a mask as an 8-bit gray image, one gray level per class.
func MaskToImage(m models.Mask) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(out.Pix, m.Pix)
	return out
}

// Save writes im to path; the format follows the file extension.
func Save(im models.Image, path string) error {
	img, err := ToImage(im)
	if err != nil {
		return errors.WithMessagef(err, "saving %q", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %q", path)
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save %q", path)
	}
	return nil
}

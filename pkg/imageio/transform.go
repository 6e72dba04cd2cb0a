package imageio

import (
	"github.com/disintegration/imaging"

	"patchlabel/internal/models"
)

// Transform is applied to an image (or patch) before it is handed to the caller.
type Transform func(models.Image) (models.Image, error)

// Resize scales images to size x size with a Lanczos filter.
func Resize(size int) Transform {
	return func(im models.Image) (models.Image, error) {
		img, err := ToImage(im)
		if err != nil {
			return models.Image{}, err
		}
		resized := imaging.Resize(img, size, size, imaging.Lanczos)
		return FromImage(resized, im.Channels == 1), nil
	}
}

// Chain applies transforms in order. Nil transforms are skipped.
func Chain(transforms ...Transform) Transform {
	return func(im models.Image) (models.Image, error) {
		var err error
		for _, t := range transforms {
			if t == nil {
				continue
			}
			if im, err = t(im); err != nil {
				return models.Image{}, err
			}
		}
		return im, nil
	}
}

package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// NumClasses is the number of classes reported in a LabelVector.
const NumClasses = 3

// NumBuckets is the number of mask values a mask may contain.
// Bucket 3 is background and never reported.
const NumBuckets = 4

// Image is a decoded image held as interleaved 8-bit samples in row-major order.
// Channels is 1 for grayscale and 3 for RGB.
type Image struct {
	// Pix holds Height*Width*Channels samples
	Pix []uint8

	Height   int
	Width    int
	Channels int
}

// NewImage allocates a zeroed image of the given shape
func NewImage(height, width, channels int) Image {
	return Image{
		Pix:      make([]uint8, height*width*channels),
		Height:   height,
		Width:    width,
		Channels: channels,
	}
}

// Area returns the number of pixels (not samples) in the image
func (im Image) Area() int {
	return im.Height * im.Width
}

// At returns the sample at (row, col) for channel ch
func (im Image) At(row, col, ch int) uint8 {
	return im.Pix[(row*im.Width+col)*im.Channels+ch]
}

// Set writes the sample at (row, col) for channel ch
func (im Image) Set(row, col, ch int, v uint8) {
	im.Pix[(row*im.Width+col)*im.Channels+ch] = v
}

// Validate checks that the declared shape matches the pixel buffer
func (im Image) Validate() error {
	if im.Height <= 0 || im.Width <= 0 {
		return errors.Errorf("image has zero area (%dx%d)", im.Height, im.Width)
	}
	if im.Channels <= 0 {
		return errors.Errorf("image has %d channels", im.Channels)
	}
	if len(im.Pix) != im.Height*im.Width*im.Channels {
		return errors.Errorf("image buffer holds %d samples, shape %dx%dx%d needs %d",
			len(im.Pix), im.Height, im.Width, im.Channels, im.Height*im.Width*im.Channels)
	}
	return nil
}

// Mask holds one class index per pixel, in row-major order.
type Mask struct {
	Pix    []uint8
	Height int
	Width  int
}

// NewMask allocates a mask filled with class 0
func NewMask(height, width int) Mask {
	return Mask{Pix: make([]uint8, height*width), Height: height, Width: width}
}

// At returns the class index at (row, col)
func (m Mask) At(row, col int) uint8 {
	return m.Pix[row*m.Width+col]
}

// Validate checks that the declared shape matches the pixel buffer
func (m Mask) Validate() error {
	if m.Height <= 0 || m.Width <= 0 {
		return errors.Errorf("mask has zero area (%dx%d)", m.Height, m.Width)
	}
	if len(m.Pix) != m.Height*m.Width {
		return errors.Errorf("mask buffer holds %d cells, shape %dx%d needs %d",
			len(m.Pix), m.Height, m.Width, m.Height*m.Width)
	}
	return nil
}

// Position is the top-left corner of a patch in its source image
type Position struct {
	Row int `yaml:"row"`
	Col int `yaml:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Patch is a square copy cut out of a larger image.
// It never shares memory with the image it came from.
type Patch struct {
	Image    Image
	Position Position
}

// LabelVector marks which of classes 0, 1 and 2 are present.
// Every entry is 0 or 1.
type LabelVector [NumClasses]uint8

// Has reports whether class c is marked present
func (lv LabelVector) Has(c int) bool {
	return c >= 0 && c < NumClasses && lv[c] == 1
}

// Valid reports whether every entry is 0 or 1
func (lv LabelVector) Valid() bool {
	for _, v := range lv {
		if v > 1 {
			return false
		}
	}
	return true
}

func (lv LabelVector) String() string {
	return fmt.Sprintf("[%d,%d,%d]", lv[0], lv[1], lv[2])
}

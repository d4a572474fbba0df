package images

import (
	"image"

	"github.com/nfnt/resize"
)

// ResizeForModel scales an image to the input resolution a model expects.
//
// Aspect ratio is not preserved; detection backends that need
// letterboxing apply it on top of this. Lanczos3 is used for the same
// reason the preprocessing pipeline elsewhere uses it: quality matters
// more than speed for single-still API requests.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//
// Returns:
//   - The resized image.
func ResizeForModel(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

package images

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	// Register decoders for the formats the API accepts.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// Image represents a decoded request image.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The decoded pixel data.
	Pixels image.Image `json:"-" yaml:"-"`
	// The raw bytes of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the image in pixels.
	Height int `json:"height" yaml:"height"`
}

// DecodeBase64 decodes a base64-encoded image into an Image.
//
// Browser clients send data-URL strings ("data:image/png;base64,...."),
// so everything up to and including the first comma is stripped before
// decoding.
//
// Arguments:
//   - encoded: The base64 string, with or without a data-URL prefix.
//
// Returns:
//   - *Image: The decoded image with its dimensions populated.
//   - error: An error if the payload is not valid base64 or not a
//     decodable image.
func DecodeBase64(encoded string) (*Image, error) {
	if idx := strings.Index(encoded, ","); idx >= 0 {
		encoded = encoded[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 image payload")
	}

	pix, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	bounds := pix.Bounds()
	return &Image{
		Format: ImageFormat(format),
		Pixels: pix,
		Data:   data,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

package inference

import (
	"bytes"
	"fmt"
	"image"

	// Register the decoders for the image formats the API accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/foodlens/foodlens-go/internal/errors"
)

// ErrInvalidImage marks input bytes that could not be decoded as an image.
// Callers should treat it as a client error, the request never reached a
// backend.
var ErrInvalidImage = errors.NewStd("invalid image")

// decodeImage decodes raw request bytes into an image and its dimensions.
func decodeImage(data []byte) (image.Image, Dimensions, error) {
	if len(data) == 0 {
		return nil, Dimensions{}, fmt.Errorf("%w: empty input", ErrInvalidImage)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Dimensions{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	dims := Dimensions{Width: bounds.Dx(), Height: bounds.Dy()}
	if dims.Width <= 0 || dims.Height <= 0 {
		return nil, Dimensions{}, fmt.Errorf("%w: zero-sized %s image", ErrInvalidImage, format)
	}

	return img, dims, nil
}

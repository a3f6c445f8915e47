package engine

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// loadImage opens and decodes the image at path, classifying failures as
// not-found vs. undecodable so callers can map them to distinct responses.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrImageNotFound(path)
		}
		return nil, ErrInvalidImage(path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, ErrInvalidImage(path, err)
	}
	return img, nil
}

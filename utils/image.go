package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// ImageToJpgBuffer Encode an image as jpg to write to output
func ImageToJpgBuffer(img image.Image, options *jpeg.Options) (*[]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, options); err != nil {
		return nil, fmt.Errorf("jpeg encode error: %w", err)
	}
	encoded := buf.Bytes()
	return &encoded, nil
}

// ImageToPngBuffer Encode an image as png to write to output
func ImageToPngBuffer(img image.Image) (*[]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("png encode error: %w", err)
	}
	encoded := buf.Bytes()
	return &encoded, nil
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging inspects uploaded images and produces a JPEG thumbnail
// for them. Decoding covers GIF, JPEG, PNG, WebP, BMP and TIFF. Images
// narrower than the thumbnail width are copied at their own size rather
// than upscaled.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder

	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ThumbnailWidth is the target width of generated thumbnails in pixels.
const ThumbnailWidth = 320

// thumbnailQuality is the JPEG quality used for thumbnails.
const thumbnailQuality = 80

// maxPixels bounds the decoded size of an upload.
const maxPixels = 40_000_000

// ErrTooLarge is returned for images whose pixel count exceeds the limit.
var ErrTooLarge = errors.New("image dimensions too large")

// Info describes an image without decoding its pixels.
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Inspect reads the image header from data.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("imaging: inspect: %w", err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Thumbnail is a generated preview ready for upload.
type Thumbnail struct {
	Width       int
	Height      int
	Data        []byte
	ContentType string
}

// MakeThumbnail scales data down to width pixels wide, keeping the aspect
// ratio, and encodes the result as JPEG.
func MakeThumbnail(data []byte, width int) (*Thumbnail, error) {
	info, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("imaging: empty image")
	}
	if info.Width*info.Height > maxPixels {
		return nil, ErrTooLarge
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	if width <= 0 || width > info.Width {
		width = info.Width
	}
	height := info.Height * width / info.Width
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return &Thumbnail{
		Width:       width,
		Height:      height,
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
	}, nil
}

// Package imageio persists baked images in the configured file format.
package imageio

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/autolow/internal/config"
)

// Filename returns the file name for a map, e.g. "normal.png". A non-empty
// prefix is joined with an underscore ("Suzanne_LP_normal.png").
func Filename(prefix, mapName string, format config.ImageFormat) string {
	if prefix != "" {
		return prefix + "_" + mapName + format.Ext()
	}
	return mapName + format.Ext()
}

// Save encodes img to path, creating parent directories as needed.
func Save(path string, img image.Image, format config.ImageFormat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if err := Encode(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return f.Close()
}

// Encode writes img to w. PNG and TIFF keep 16-bit channels; the other
// formats are 8-bit and get a converted copy.
func Encode(w io.Writer, img image.Image, format config.ImageFormat) error {
	switch format {
	case config.FormatPNG:
		return encodePNG(w, img)
	case config.FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case config.FormatWebP:
		return nativewebp.Encode(w, toNRGBA(img), nil)
	case config.FormatTGA:
		return tga.Encode(w, toNRGBA(img))
	case config.FormatBMP:
		return bmp.Encode(w, toNRGBA(img))
	default:
		return fmt.Errorf("unsupported image format %s", format)
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
